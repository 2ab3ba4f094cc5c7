package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/poolbook/internal/domain"
	"github.com/alanyoungcy/poolbook/internal/service"
)

// MarketHandler serves market lifecycle and projection endpoints.
type MarketHandler struct {
	markets *service.MarketService
	settle  *service.SettleService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the provided dependencies.
func NewMarketHandler(markets *service.MarketService, settle *service.SettleService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, settle: settle, logger: logger}
}

// ListMarkets returns markets, optionally filtered by ?status=open,closed.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.MarketStatus
	if v := r.URL.Query().Get("status"); v != "" {
		for _, s := range splitCSV(v) {
			switch domain.MarketStatus(s) {
			case domain.MarketStatusOpen, domain.MarketStatusClosed, domain.MarketStatusSettled:
				statuses = append(statuses, domain.MarketStatus(s))
			default:
				writeError(w, http.StatusBadRequest, "unknown status "+s)
				return
			}
		}
	}

	markets, err := h.markets.List(r.Context(), statuses, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	total, err := h.markets.Count(r.Context(), statuses)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]marketJSON, 0, len(markets))
	for _, m := range markets {
		out = append(out, renderMarket(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": out,
		"total":   total,
	})
}

// GetMarket returns the market summary projection.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	summary, err := h.markets.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderSummary(summary))
}

type createMarketRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
}

// CreateMarket opens a new market. Admin only.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, options, err := h.markets.Open(r.Context(), identity, req.Title, req.Description, req.Options)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	opts := make([]optionJSON, 0, len(options))
	for _, o := range options {
		opts = append(opts, optionJSON{ID: o.ID, Name: o.Name, TotalAmount: o.TotalAmount.String()})
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"market":  renderMarket(market),
		"options": opts,
	})
}

// CloseMarket freezes an open market. Admin only.
// POST /api/markets/{id}/close
func (h *MarketHandler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.markets.Close(r.Context(), identity, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.MarketStatusClosed)})
}

type settleRequest struct {
	OptionID string `json:"option_id"`
}

// SettleMarket resolves a closed market. Admin only.
// POST /api/markets/{id}/settle
func (h *MarketHandler) SettleMarket(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req settleRequest
	if err := decodeJSON(r, &req); err != nil || req.OptionID == "" {
		writeError(w, http.StatusBadRequest, "option_id is required")
		return
	}

	settlement, err := h.settle.Settle(r.Context(), identity, r.PathValue("id"), req.OptionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":         settlement.MarketID,
		"correct_option_id": settlement.CorrectOptionID,
		"winners":           len(settlement.Payouts),
		"disbursed":         settlement.Total().String(),
	})
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
