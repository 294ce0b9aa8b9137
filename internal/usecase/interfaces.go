package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// AccountDirectory resolves the accounts a money movement touches and
// answers the debit card gate. Lookups return domain.ErrAccountNotFound
// when nothing matches. A nil tx reads outside any transaction.
type AccountDirectory interface {
	FindByOwner(ctx context.Context, tx Transaction, ownerID string) (*domain.Account, error)
	FindByExternalID(ctx context.Context, tx Transaction, iban string) (*domain.Account, error)
	HasApprovedCard(ctx context.Context, tx Transaction, accountID string, at time.Time) (bool, error)
}

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByOwner(ctx context.Context, ownerID string) (*domain.Account, error)
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	Approve(ctx context.Context, tx Transaction, id string, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// CardRepository defines data access for debit cards.
type CardRepository interface {
	Create(ctx context.Context, tx Transaction, card *domain.DebitCard) error
	GetByAccount(ctx context.Context, accountID string) (*domain.DebitCard, error)
}

// TransactionRepository defines data access for ledger records.
// Records are append-only.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.Transaction) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
}

// LedgerRepository defines data access for ledger-wide operations.
type LedgerRepository interface {
	// Totals returns the sum of all account balances and the net of all
	// records (credits minus debits).
	Totals(ctx context.Context) (totalBalance, netRecorded decimal.Decimal, err error)
	AccountNet(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation that lost a storage conflict.
type Retrier interface {
	Retry(ctx context.Context, op func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// ReferenceGenerator generates the customer-facing identifiers of accounts
// and cards.
type ReferenceGenerator interface {
	AccountID() string
	IBAN() string
	CardNumber() string
}

// IdempotencyStore remembers the responses of keyed mutating requests.
type IdempotencyStore interface {
	// Reserve claims key for an in-flight request. If the key was already
	// claimed it returns false with the stored response, which is nil while
	// the first request is still running.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error)
	// Complete stores the final response under a reserved key.
	Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a reservation so the request may be retried.
	Release(ctx context.Context, key string) error
}
