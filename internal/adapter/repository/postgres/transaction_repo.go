package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

const transactionColumns = `id, account_id, direction, amount, currency, created_at`

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a record.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.Transaction) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID,
		record.AccountID,
		string(record.Direction),
		amountToNumeric(record.Amount),
		record.Currency,
		utcTimestamptz(record.CreatedAt),
	)

	return err
}

// ListByAccount lists one account's records, oldest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}

	return collectTransactions(rows)
}

// List lists all records, oldest first.
func (r *TransactionRepository) List(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	defer rows.Close()

	records := []*domain.Transaction{}
	for rows.Next() {
		var (
			rec       domain.Transaction
			direction string
			amount    pgtype.Numeric
			createdAt pgtype.Timestamptz
		)

		if err := rows.Scan(&rec.ID, &rec.AccountID, &direction, &amount, &rec.Currency, &createdAt); err != nil {
			return nil, err
		}

		rec.Direction = domain.Direction(direction)
		rec.Amount = numericToAmount(amount)
		rec.CreatedAt = timestamptzToTime(createdAt)
		records = append(records, &rec)
	}

	return records, rows.Err()
}
