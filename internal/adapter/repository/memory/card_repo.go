package memory

import (
	"context"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// CardRepository implements usecase.CardRepository.
type CardRepository struct {
	store *Store
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(store *Store) *CardRepository {
	return &CardRepository{store: store}
}

// Create stages a card. One card per account is enforced on commit.
func (r *CardRepository) Create(_ context.Context, tx usecase.Transaction, card *domain.DebitCard) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	cp := *card
	mt.cards = append(mt.cards, &cp)

	return nil
}

// GetByAccount returns the card attached to an account.
func (r *CardRepository) GetByAccount(_ context.Context, accountID string) (*domain.DebitCard, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	card, ok := r.store.cards[accountID]
	if !ok {
		return nil, domain.ErrCardNotFound
	}
	cp := *card

	return &cp, nil
}

// Put stores a card directly, bypassing transactions. Used to seed fixtures
// such as expired or unapproved cards.
func (r *CardRepository) Put(card *domain.DebitCard) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *card
	r.store.cards[card.AccountID] = &cp
	r.store.cardNumbers[card.CardNumber] = true
}
