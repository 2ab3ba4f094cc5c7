package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/poolbook/internal/service"
)

// AccountHandler serves the caller's account and the daily bonus claim.
type AccountHandler struct {
	ledger *service.LedgerService
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler with the provided dependencies.
func NewAccountHandler(ledger *service.LedgerService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{ledger: ledger, logger: logger}
}

// Me returns the authenticated caller's account.
// GET /api/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	account, err := h.ledger.Account(r.Context(), identity.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderAccount(account))
}

// ClaimBonus credits the daily bonus to the caller.
// POST /api/bonus
func (h *AccountHandler) ClaimBonus(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	amount, err := h.ledger.ClaimBonus(r.Context(), identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	account, err := h.ledger.Account(r.Context(), identity.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":  amount.String(),
		"balance": account.Balance.String(),
	})
}
