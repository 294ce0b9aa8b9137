package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository and usecase.AccountDirectory.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create stages a new account. Uniqueness of ID, owner and IBAN is enforced on commit.
func (r *AccountRepository) Create(_ context.Context, tx usecase.Transaction, account *domain.Account) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	cp := *account
	mt.accounts = append(mt.accounts, &cp)

	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	acc, ok := r.store.account(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return acc, nil
}

// GetByOwner retrieves the account owned by a user.
func (r *AccountRepository) GetByOwner(_ context.Context, ownerID string) (*domain.Account, error) {
	r.store.mu.RLock()
	id, ok := r.store.byOwner[ownerID]
	r.store.mu.RUnlock()

	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return r.GetByID(context.Background(), id)
}

// GetByIDsForUpdate locks the accounts in ascending ID order and returns them
// with any balance already staged by tx applied. Missing IDs are skipped.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if err := mt.lock(ctx, ids); err != nil {
		return nil, err
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	accounts := make([]*domain.Account, 0, len(sorted))
	for _, id := range sorted {
		acc, ok := r.store.account(id)
		if !ok {
			continue
		}
		if w, staged := mt.balances[id]; staged {
			acc.Balance = w.balance
			acc.UpdatedAt = w.updatedAt
		}
		if _, staged := mt.approvals[id]; staged {
			acc.IsApproved = true
		}
		accounts = append(accounts, acc)
	}

	return accounts, nil
}

// UpdateBalance stages a new balance for an account locked by tx.
func (r *AccountRepository) UpdateBalance(_ context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	if _, ok := mt.held[id]; !ok {
		return errNotLocked(id)
	}

	mt.balances[id] = balanceWrite{balance: balance, updatedAt: updatedAt}

	return nil
}

// Approve stages the approval of an account.
func (r *AccountRepository) Approve(_ context.Context, tx usecase.Transaction, id string, updatedAt time.Time) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	if _, ok := r.store.account(id); !ok {
		return domain.ErrAccountNotFound
	}

	mt.approvals[id] = updatedAt

	return nil
}

// List lists accounts ordered by creation time.
func (r *AccountRepository) List(_ context.Context, limit, offset int) ([]*domain.Account, error) {
	r.store.mu.RLock()
	all := make([]*domain.Account, 0, len(r.store.accounts))
	for _, acc := range r.store.accounts {
		cp := *acc
		all = append(all, &cp)
	}
	r.store.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	return page(all, limit, offset), nil
}

// FindByOwner resolves the account owned by a user.
func (r *AccountRepository) FindByOwner(ctx context.Context, _ usecase.Transaction, ownerID string) (*domain.Account, error) {
	return r.GetByOwner(ctx, ownerID)
}

// FindByExternalID resolves an account by IBAN.
func (r *AccountRepository) FindByExternalID(ctx context.Context, _ usecase.Transaction, iban string) (*domain.Account, error) {
	r.store.mu.RLock()
	id, ok := r.store.byIBAN[iban]
	r.store.mu.RUnlock()

	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return r.GetByID(ctx, id)
}

// HasApprovedCard reports whether the account holds a card that authorizes at the given time.
func (r *AccountRepository) HasApprovedCard(_ context.Context, _ usecase.Transaction, accountID string, at time.Time) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	card, ok := r.store.cards[accountID]
	if !ok {
		return false, nil
	}

	return card.Authorizes(at), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}

	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	return items[offset:end]
}
