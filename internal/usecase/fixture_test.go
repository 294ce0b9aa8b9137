package usecase_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/bankledger/internal/adapter/repository/memory"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

type seqIDs struct {
	n atomic.Int64
}

func (g *seqIDs) Generate() string {
	return fmt.Sprintf("%020d", g.n.Add(1))
}

type seqRefs struct {
	n atomic.Int64
}

func (g *seqRefs) AccountID() string  { return fmt.Sprintf("ACCT_%08x", g.n.Add(1)) }
func (g *seqRefs) IBAN() string       { return fmt.Sprintf("IBAN_%012x", g.n.Add(1)) }
func (g *seqRefs) CardNumber() string { return fmt.Sprintf("CARD_%010x", g.n.Add(1)) }

// ledger wires the engine and its collaborators to one memory store.
type ledger struct {
	store        *memory.Store
	accountRepo  *memory.AccountRepository
	cardRepo     *memory.CardRepository
	txRepo       *memory.TransactionRepository
	outboxRepo   *memory.OutboxRepository
	ids          *seqIDs
	refs         *seqRefs
	engine       *usecase.TransferUseCase
	accounts     *usecase.AccountUseCase
	history      *usecase.HistoryUseCase
	ledgerChecks *usecase.LedgerUseCase
}

func newLedger(t *testing.T) *ledger {
	t.Helper()

	store := memory.NewStore()
	l := &ledger{
		store:       store,
		accountRepo: memory.NewAccountRepository(store),
		cardRepo:    memory.NewCardRepository(store),
		txRepo:      memory.NewTransactionRepository(store),
		outboxRepo:  memory.NewOutboxRepository(store),
		ids:         &seqIDs{},
		refs:        &seqRefs{},
	}
	l.rewire(l.outboxRepo)

	return l
}

// rewire rebuilds the use cases around a different outbox, e.g. one that fails.
func (l *ledger) rewire(outbox usecase.OutboxRepository) {
	txManager := memory.NewTxManager(l.store)

	l.engine = usecase.NewTransferUseCase(txManager, l.accountRepo, l.accountRepo, l.txRepo, outbox, nil, l.ids)
	l.accounts = usecase.NewAccountUseCase(txManager, l.accountRepo, l.cardRepo, outbox, l.ids, l.refs, nil)
	l.history = usecase.NewHistoryUseCase(l.accountRepo, l.txRepo)
	l.ledgerChecks = usecase.NewLedgerUseCase(memory.NewLedgerRepository(l.store), l.accountRepo, nil)
}

// open creates an approved account with an approved card and the given balance.
func (l *ledger) open(t *testing.T, owner, balance string) *domain.Account {
	t.Helper()
	ctx := context.Background()

	acc, err := l.accounts.OpenAccount(ctx, usecase.OpenAccountInput{OwnerID: owner})
	require.NoError(t, err)

	_, err = l.accounts.ApproveAccount(ctx, acc.ID)
	require.NoError(t, err)

	_, err = l.accounts.IssueCard(ctx, acc.ID)
	require.NoError(t, err)

	amount := decimal.RequireFromString(balance)
	if amount.IsPositive() {
		_, err = l.engine.Deposit(ctx, usecase.MovementInput{UserID: owner, Amount: amount})
		require.NoError(t, err)
	}

	return l.reload(t, acc.ID)
}

// revokeCard replaces the account's card with one that no longer authorizes.
func (l *ledger) revokeCard(t *testing.T, accountID string, expired bool) {
	t.Helper()

	card, err := l.cardRepo.GetByAccount(context.Background(), accountID)
	require.NoError(t, err)

	if expired {
		card.ExpiresAt = time.Now().Add(-time.Minute)
	} else {
		card.IsApproved = false
	}
	l.cardRepo.Put(card)
}

func (l *ledger) reload(t *testing.T, id string) *domain.Account {
	t.Helper()

	acc, err := l.accountRepo.GetByID(context.Background(), id)
	require.NoError(t, err)

	return acc
}

func (l *ledger) records(t *testing.T, accountID string) []*domain.Transaction {
	t.Helper()

	recs, err := l.txRepo.ListByAccount(context.Background(), accountID, domain.MaxPageSize, 0)
	require.NoError(t, err)

	return recs
}

func (l *ledger) allRecords(t *testing.T) []*domain.Transaction {
	t.Helper()

	recs, err := l.txRepo.List(context.Background(), domain.MaxPageSize, 0)
	require.NoError(t, err)

	return recs
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
