package handler

import (
	"context"
	"net/http"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// HistoryReader lists ledger records.
type HistoryReader interface {
	ListTransactions(ctx context.Context, input usecase.ListTransactionsInput) ([]*domain.Transaction, error)
}

// TransactionHandler serves transaction history.
type TransactionHandler struct {
	history HistoryReader
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(history HistoryReader) *TransactionHandler {
	return &TransactionHandler{history: history}
}

// List returns the caller's records, or every record for a banker, oldest first.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	records, err := h.history.ListTransactions(r.Context(), usecase.ListTransactionsInput{
		User:   user,
		Limit:  parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(records))
}
