package usecase

import (
	"context"

	"github.com/iho/bankledger/internal/domain"
)

// HistoryUseCase serves transaction history reads.
type HistoryUseCase struct {
	directory       AccountDirectory
	transactionRepo TransactionRepository
}

// NewHistoryUseCase creates a new HistoryUseCase.
func NewHistoryUseCase(directory AccountDirectory, transactionRepo TransactionRepository) *HistoryUseCase {
	return &HistoryUseCase{
		directory:       directory,
		transactionRepo: transactionRepo,
	}
}

// ListTransactionsInput represents input for listing transactions.
type ListTransactionsInput struct {
	User   domain.User
	Limit  int
	Offset int
}

// ListTransactions returns records in ascending creation order. Bankers see
// every record, clients only those against their own account.
func (uc *HistoryUseCase) ListTransactions(ctx context.Context, input ListTransactionsInput) ([]*domain.Transaction, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	if input.User.Role.CanViewAll() {
		return uc.transactionRepo.List(ctx, limit, offset)
	}

	if !input.User.Role.IsValid() {
		return nil, domain.ErrInsufficientRole
	}

	account, err := uc.directory.FindByOwner(ctx, nil, input.User.ID)
	if err != nil {
		return nil, err
	}

	return uc.transactionRepo.ListByAccount(ctx, account.ID, limit, offset)
}
