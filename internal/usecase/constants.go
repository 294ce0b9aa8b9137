package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)

// Operation names used in logs and metrics.
const (
	OperationTransfer = "transfer"
	OperationWithdraw = "withdraw"
	OperationDeposit  = "deposit"
)
