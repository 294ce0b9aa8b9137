package memory

import (
	"context"

	"github.com/shopspring/decimal"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// Totals returns the sum of balances and the net of all records.
func (r *LedgerRepository) Totals(_ context.Context) (decimal.Decimal, decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	totalBalance := decimal.Zero
	for _, acc := range r.store.accounts {
		totalBalance = totalBalance.Add(acc.Balance)
	}

	net := decimal.Zero
	for _, rec := range r.store.transactions {
		net = net.Add(rec.Signed())
	}

	return totalBalance, net, nil
}

// AccountNet returns the net of one account's records.
func (r *LedgerRepository) AccountNet(_ context.Context, accountID string) (decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	net := decimal.Zero
	for _, rec := range r.store.transactions {
		if rec.AccountID == accountID {
			net = net.Add(rec.Signed())
		}
	}

	return net, nil
}
