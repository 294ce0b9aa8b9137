package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// CardRepository implements usecase.CardRepository.
type CardRepository struct {
	db DBTX
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(db DBTX) *CardRepository {
	return &CardRepository{db: db}
}

// Create inserts a card. The schema allows one card per account.
func (r *CardRepository) Create(ctx context.Context, tx usecase.Transaction, card *domain.DebitCard) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO debit_cards (id, card_number, account_id, is_approved, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		card.ID,
		card.CardNumber,
		card.AccountID,
		card.IsApproved,
		utcTimestamptz(card.ExpiresAt),
		utcTimestamptz(card.CreatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrCardExists
	}

	return err
}

// GetByAccount returns the card attached to an account.
func (r *CardRepository) GetByAccount(ctx context.Context, accountID string) (*domain.DebitCard, error) {
	var (
		card      domain.DebitCard
		expiresAt pgtype.Timestamptz
		createdAt pgtype.Timestamptz
	)

	err := r.db.QueryRow(ctx, `
		SELECT id, card_number, account_id, is_approved, expires_at, created_at
		FROM debit_cards
		WHERE account_id = $1`, accountID).Scan(
		&card.ID,
		&card.CardNumber,
		&card.AccountID,
		&card.IsApproved,
		&expiresAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}

		return nil, err
	}

	card.ExpiresAt = timestamptzToTime(expiresAt)
	card.CreatedAt = timestamptzToTime(createdAt)

	return &card, nil
}
