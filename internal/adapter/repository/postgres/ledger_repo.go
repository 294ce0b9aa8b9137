package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Totals returns the sum of balances and the net of all records, read from
// one snapshot.
func (r *LedgerRepository) Totals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var totalBalance, net pgtype.Numeric

	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(balance), 0) FROM accounts),
			(SELECT COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN amount ELSE -amount END), 0) FROM transactions)
	`).Scan(&totalBalance, &net)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return numericToAmount(totalBalance), numericToAmount(net), nil
}

// AccountNet returns the net of one account's records.
func (r *LedgerRepository) AccountNet(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var net pgtype.Numeric

	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE account_id = $1`, accountID).Scan(&net)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToAmount(net), nil
}
