package handler

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/alanyoungcy/poolbook/internal/service"
)

// StakeHandler serves wager placement and the caller's stake history.
type StakeHandler struct {
	stakes *service.StakeService
	logger *slog.Logger
}

// NewStakeHandler creates a StakeHandler with the provided dependencies.
func NewStakeHandler(stakes *service.StakeService, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{stakes: stakes, logger: logger}
}

type placeStakeRequest struct {
	MarketID string `json:"market_id"`
	OptionID string `json:"option_id"`
	Amount   string `json:"amount"`
}

// PlaceStake places a wager for the caller.
// POST /api/stakes
func (h *StakeHandler) PlaceStake(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req placeStakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MarketID == "" || req.OptionID == "" {
		writeError(w, http.StatusBadRequest, "market_id and option_id are required")
		return
	}
	amount, ok2 := new(big.Int).SetString(req.Amount, 10)
	if !ok2 {
		writeError(w, http.StatusBadRequest, "amount must be a decimal integer string")
		return
	}

	stake, err := h.stakes.Place(r.Context(), identity, req.MarketID, req.OptionID, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderStake(stake))
}

// ListStakes returns the caller's stakes, newest first.
// GET /api/stakes
func (h *StakeHandler) ListStakes(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	stakes, err := h.stakes.ListByAccount(r.Context(), identity, parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stakes": renderStakes(stakes)})
}
