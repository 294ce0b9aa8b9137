// Package memory is an in-process ledger store. It honors the same locking
// and atomicity contract as the Postgres store: account rows are locked in
// ascending ID order and writes become visible only on commit.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// ErrTxDone is returned when a finished transaction is used.
var ErrTxDone = errors.New("memory: transaction already committed or rolled back")

// Store holds accounts, cards, transaction records and outbox events.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	byOwner      map[string]string
	byIBAN       map[string]string
	cards        map[string]*domain.DebitCard // keyed by account ID
	cardNumbers  map[string]bool
	transactions []*domain.Transaction
	outbox       []*domain.OutboxEvent

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]*domain.Account),
		byOwner:     make(map[string]string),
		byIBAN:      make(map[string]string),
		cards:       make(map[string]*domain.DebitCard),
		cardNumbers: make(map[string]bool),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *Store) rowLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}

	return l
}

// Tx is a unit of work against the store.
type Tx struct {
	store *Store
	mu    sync.Mutex
	done  bool
	held  map[string]*sync.Mutex

	accounts     []*domain.Account
	balances     map[string]balanceWrite
	approvals    map[string]time.Time
	cards        []*domain.DebitCard
	transactions []*domain.Transaction
	outbox       []*domain.OutboxEvent
}

type balanceWrite struct {
	balance   decimal.Decimal
	updatedAt time.Time
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{
		store:     m.store,
		held:      make(map[string]*sync.Mutex),
		balances:  make(map[string]balanceWrite),
		approvals: make(map[string]time.Time),
	}, nil
}

// Commit applies staged writes and releases row locks.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.release()

	if err := ctx.Err(); err != nil {
		return err
	}

	return t.store.apply(t)
}

// Rollback discards staged writes and releases row locks.
// Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true
	t.release()

	return nil
}

func (t *Tx) release() {
	for id, l := range t.held {
		l.Unlock()
		delete(t.held, id)
	}
}

// lock acquires row locks for ids in ascending order, skipping rows this
// transaction already holds.
func (t *Tx) lock(ctx context.Context, ids []string) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	for _, id := range sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := t.held[id]; ok {
			continue
		}
		l := t.store.rowLock(id)
		l.Lock()
		t.held[id] = l
	}

	return nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt == nil {
		return nil, errors.New("memory: foreign or nil transaction")
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return nil, ErrTxDone
	}

	return mt, nil
}

// apply validates uniqueness against committed state and makes staged writes visible.
func (s *Store) apply(t *Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range t.accounts {
		if _, ok := s.accounts[acc.ID]; ok {
			return domain.ErrAccountExists
		}
		if _, ok := s.byOwner[acc.OwnerID]; ok {
			return domain.ErrAccountExists
		}
		if _, ok := s.byIBAN[acc.IBAN]; ok {
			return domain.ErrAccountExists
		}
	}
	for _, card := range t.cards {
		if _, ok := s.cards[card.AccountID]; ok {
			return domain.ErrCardExists
		}
		if s.cardNumbers[card.CardNumber] {
			return domain.ErrCardExists
		}
	}

	for _, acc := range t.accounts {
		stored := *acc
		s.accounts[acc.ID] = &stored
		s.byOwner[acc.OwnerID] = acc.ID
		s.byIBAN[acc.IBAN] = acc.ID
	}
	for id, w := range t.balances {
		if acc, ok := s.accounts[id]; ok {
			acc.Balance = w.balance
			acc.Version++
			acc.UpdatedAt = w.updatedAt
		}
	}
	for id, at := range t.approvals {
		if acc, ok := s.accounts[id]; ok {
			acc.IsApproved = true
			acc.UpdatedAt = at
		}
	}
	for _, card := range t.cards {
		stored := *card
		s.cards[card.AccountID] = &stored
		s.cardNumbers[card.CardNumber] = true
	}
	for _, rec := range t.transactions {
		stored := *rec
		s.transactions = append(s.transactions, &stored)
	}
	for _, ev := range t.outbox {
		stored := *ev
		s.outbox = append(s.outbox, &stored)
	}

	return nil
}

func (s *Store) account(id string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	cp := *acc

	return &cp, true
}

func errNotLocked(id string) error {
	return errors.New("memory: account " + id + " is not locked by this transaction")
}
