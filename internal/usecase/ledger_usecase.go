package usecase

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// ErrInconsistentLedger is returned when balances disagree with the recorded history.
var ErrInconsistentLedger = errors.New("ledger is inconsistent: balances do not match recorded transactions")

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo  LedgerRepository
	accountRepo AccountRepository
	metrics     *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledgerRepo LedgerRepository, accountRepo AccountRepository, metrics *metrics.Metrics) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo:  ledgerRepo,
		accountRepo: accountRepo,
		metrics:     metrics,
	}
}

// ConsistencyReport describes the result of a ledger check.
type ConsistencyReport struct {
	TotalBalance decimal.Decimal
	NetRecorded  decimal.Decimal
	Consistent   bool
}

// CheckConsistency verifies the sum of all balances equals the net of all
// records. Accounts start at zero, so every balance change must be recorded.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	totalBalance, netRecorded, err := uc.ledgerRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		TotalBalance: totalBalance,
		NetRecorded:  netRecorded,
		Consistent:   totalBalance.Equal(netRecorded),
	}

	if uc.metrics != nil {
		result := "consistent"
		if !report.Consistent {
			result = "inconsistent"
		}
		uc.metrics.LedgerChecks.WithLabelValues(result).Inc()
	}

	if !report.Consistent {
		return report, ErrInconsistentLedger
	}

	return report, nil
}

// ReconciliationReport compares one account's balance with its records.
type ReconciliationReport struct {
	AccountID   string
	Balance     decimal.Decimal
	NetRecorded decimal.Decimal
	Difference  decimal.Decimal
	Consistent  bool
}

// ReconcileAccount compares the stored balance of an account with the net
// of its records.
func (uc *LedgerUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationReport, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	net, err := uc.ledgerRepo.AccountNet(ctx, accountID)
	if err != nil {
		return nil, err
	}

	diff := account.Balance.Sub(net)

	return &ReconciliationReport{
		AccountID:   accountID,
		Balance:     account.Balance,
		NetRecorded: net,
		Difference:  diff,
		Consistent:  diff.IsZero(),
	}, nil
}
