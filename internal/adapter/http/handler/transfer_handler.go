package handler

import (
	"context"
	"net/http"

	"github.com/iho/bankledger/internal/adapter/http/dto"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// MoneyMover is the transaction engine as seen by HTTP.
type MoneyMover interface {
	Transfer(ctx context.Context, input usecase.TransferInput) (*usecase.TransferResult, error)
	Withdraw(ctx context.Context, input usecase.MovementInput) (*domain.Transaction, error)
	Deposit(ctx context.Context, input usecase.MovementInput) (*domain.Transaction, error)
}

// TransferHandler serves transfer, withdraw and deposit.
type TransferHandler struct {
	engine MoneyMover
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(engine MoneyMover) *TransferHandler {
	return &TransferHandler{engine: engine}
}

// Transfer moves money from the caller's account to the account holding receiver_iban.
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := dto.Decode(r, &req, false); err != nil {
		writeDomainError(w, r, err)
		return
	}

	input, err := req.ToUseCaseInput(user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if _, err := h.engine.Transfer(r.Context(), input); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.MessageResponse{Message: "Transfer successful."})
}

// Withdraw debits the caller's account.
func (h *TransferHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.engine.Withdraw, "Withdrawal successful.")
}

// Deposit credits the caller's account.
func (h *TransferHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.engine.Deposit, "Deposit successful.")
}

func (h *TransferHandler) movement(
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context, usecase.MovementInput) (*domain.Transaction, error),
	detail string,
) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.MovementRequest
	if err := dto.Decode(r, &req, false); err != nil {
		writeDomainError(w, r, err)
		return
	}

	input, err := req.ToUseCaseInput(user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if _, err := run(r.Context(), input); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.DetailResponse{Detail: detail})
}
