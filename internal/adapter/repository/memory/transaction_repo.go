package memory

import (
	"context"
	"sort"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Create stages a record.
func (r *TransactionRepository) Create(_ context.Context, tx usecase.Transaction, record *domain.Transaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	cp := *record
	mt.transactions = append(mt.transactions, &cp)

	return nil
}

// ListByAccount lists the records of one account.
func (r *TransactionRepository) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Transaction
	for _, rec := range r.store.transactions {
		if rec.AccountID == accountID {
			cp := *rec
			out = append(out, &cp)
		}
	}

	sortByCreation(out)

	return page(out, limit, offset), nil
}

// List lists all records.
func (r *TransactionRepository) List(_ context.Context, limit, offset int) ([]*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.Transaction, 0, len(r.store.transactions))
	for _, rec := range r.store.transactions {
		cp := *rec
		out = append(out, &cp)
	}

	sortByCreation(out)

	return page(out, limit, offset), nil
}

// sortByCreation orders records the way the Postgres store does: by creation
// time, then by ID. Commit order alone can differ under concurrency.
func sortByCreation(records []*domain.Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
