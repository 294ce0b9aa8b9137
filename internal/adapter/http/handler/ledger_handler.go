package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/usecase"
)

// LedgerChecker runs ledger consistency checks.
type LedgerChecker interface {
	CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error)
	ReconcileAccount(ctx context.Context, accountID string) (*usecase.ReconciliationReport, error)
}

// LedgerHandler serves the banker's ledger checks.
type LedgerHandler struct {
	ledger LedgerChecker
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerChecker) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Consistency compares the sum of balances with the net of all records. An
// inconsistent ledger is still a 200; the body says so.
func (h *LedgerHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.CheckConsistency(r.Context())
	if err != nil && !errors.Is(err, usecase.ErrInconsistentLedger) {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromReport(report))
}

// Reconcile compares one account's balance with its records.
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.ReconcileAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromReport(report))
}
