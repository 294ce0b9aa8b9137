package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

func TestAccountRepositoryUpdateBalanceInTx(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBeginTx(moneyTxOptions)
	mockPool.ExpectExec("UPDATE accounts").
		WithArgs("ACCT_1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	ctx := context.Background()
	tx, err := newTxManagerWithPool(mockPool).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	repo := NewAccountRepository(mockPool)
	if err := repo.UpdateBalance(ctx, tx, "ACCT_1", decimal.RequireFromString("70.00"), time.Now()); err != nil {
		t.Fatalf("update balance: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryUpdateBalanceMissingRow(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectExec("UPDATE accounts").
		WithArgs("ACCT_missing", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewAccountRepository(mockPool)
	err := repo.UpdateBalance(context.Background(), nil, "ACCT_missing", decimal.Zero, time.Now())
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryCreateDuplicateOwner(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectExec("INSERT INTO accounts").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	repo := NewAccountRepository(mockPool)
	err := repo.Create(context.Background(), nil, &domain.Account{ID: "ACCT_1", OwnerID: "user-1"})
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryHasApprovedCard(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{name: "card present", exists: true},
		{name: "no usable card", exists: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPool := newMockPool(t)
			mockPool.ExpectQuery("SELECT EXISTS").
				WithArgs("ACCT_1", pgxmock.AnyArg()).
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			repo := NewAccountRepository(mockPool)
			ok, err := repo.HasApprovedCard(context.Background(), nil, "ACCT_1", time.Now())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.exists {
				t.Fatalf("expected %v, got %v", tt.exists, ok)
			}

			assertExpectations(t, mockPool)
		})
	}
}

func TestAccountRepositoryQueryError(t *testing.T) {
	mockPool := newMockPool(t)
	queryErr := errors.New("connection reset")
	mockPool.ExpectQuery("FOR UPDATE").WillReturnError(queryErr)

	repo := NewAccountRepository(mockPool)
	_, err := repo.GetByIDsForUpdate(context.Background(), nil, []string{"ACCT_1", "ACCT_2"})
	if !errors.Is(err, queryErr) {
		t.Fatalf("expected query error, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestTransactionRepositoryCreate(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectExec("INSERT INTO transactions").
		WithArgs("01TX", "ACCT_1", "DEBIT", pgxmock.AnyArg(), "EUR", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewTransactionRepository(mockPool)
	err := repo.Create(context.Background(), nil, &domain.Transaction{
		ID:        "01TX",
		AccountID: "ACCT_1",
		Direction: domain.DirectionDebit,
		Amount:    decimal.RequireFromString("30.00"),
		Currency:  domain.LedgerCurrency,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, mockPool)
}
