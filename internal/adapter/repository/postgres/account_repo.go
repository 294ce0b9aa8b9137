package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

const accountColumns = `id, iban, owner_id, currency, balance, is_approved, version, created_at, updated_at`

// AccountRepository implements usecase.AccountRepository and usecase.AccountDirectory.
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID,
		account.IBAN,
		account.OwnerID,
		account.Currency,
		amountToNumeric(account.Balance),
		account.IsApproved,
		account.Version,
		utcTimestamptz(account.CreatedAt),
		utcTimestamptz(account.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrAccountExists
	}

	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, r.db, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetByOwner retrieves the account owned by a user.
func (r *AccountRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.Account, error) {
	return r.getOne(ctx, r.db, `SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1`, ownerID)
}

// GetByIDsForUpdate retrieves accounts with FOR UPDATE locks taken in
// ascending ID order. Missing IDs are skipped.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	rows, err := conn(r.db, tx).Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}

	return collectAccounts(rows)
}

// UpdateBalance writes a new balance and bumps the row version.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	tag, err := conn(r.db, tx).Exec(ctx, `
		UPDATE accounts
		SET balance = $2, version = version + 1, updated_at = $3
		WHERE id = $1`,
		id, amountToNumeric(balance), utcTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// Approve sets the approval flag of an account.
func (r *AccountRepository) Approve(ctx context.Context, tx usecase.Transaction, id string, updatedAt time.Time) error {
	tag, err := conn(r.db, tx).Exec(ctx, `
		UPDATE accounts SET is_approved = TRUE, updated_at = $2 WHERE id = $1`,
		id, utcTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}

	return collectAccounts(rows)
}

// FindByOwner resolves the account owned by a user.
func (r *AccountRepository) FindByOwner(ctx context.Context, tx usecase.Transaction, ownerID string) (*domain.Account, error) {
	return r.getOne(ctx, conn(r.db, tx), `SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1`, ownerID)
}

// FindByExternalID resolves an account by IBAN.
func (r *AccountRepository) FindByExternalID(ctx context.Context, tx usecase.Transaction, iban string) (*domain.Account, error) {
	return r.getOne(ctx, conn(r.db, tx), `SELECT `+accountColumns+` FROM accounts WHERE iban = $1`, iban)
}

// HasApprovedCard reports whether the account holds an approved card
// expiring after at.
func (r *AccountRepository) HasApprovedCard(ctx context.Context, tx usecase.Transaction, accountID string, at time.Time) (bool, error) {
	var ok bool
	err := conn(r.db, tx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM debit_cards
			WHERE account_id = $1 AND is_approved AND expires_at > $2
		)`, accountID, utcTimestamptz(at)).Scan(&ok)

	return ok, err
}

func (r *AccountRepository) getOne(ctx context.Context, db DBTX, query string, arg any) (*domain.Account, error) {
	account, err := scanAccount(db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc       domain.Account
		balance   pgtype.Numeric
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&acc.ID,
		&acc.IBAN,
		&acc.OwnerID,
		&acc.Currency,
		&balance,
		&acc.IsApproved,
		&acc.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.Balance = numericToAmount(balance)
	acc.CreatedAt = timestamptzToTime(createdAt)
	acc.UpdatedAt = timestamptzToTime(updatedAt)

	return &acc, nil
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}
