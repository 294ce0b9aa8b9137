package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// PostgreSQL error codes.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
	pgErrUniqueViolation      = "23505"
)

// Retrier implements usecase.Retrier. Each attempt runs the whole operation,
// so a retried money movement starts from a fresh transaction.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          zerolog.Logger
	metrics         *metrics.Metrics
}

// NewRetrier creates a retrier that retries lock conflicts up to maxRetries
// times. The first attempt does not count as a retry.
func NewRetrier(maxRetries int, logger zerolog.Logger, m *metrics.Metrics) *Retrier {
	return &Retrier{
		maxRetries:      max(maxRetries, 0),
		initialInterval: 50 * time.Millisecond,
		maxInterval:     time.Second,
		logger:          logger,
		metrics:         m,
	}
}

func (r *Retrier) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx)
}

// Retry runs operation until it succeeds, fails with a non-conflict error or
// the retries run out. Running out yields an error wrapping
// domain.ErrStorageConflict.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	attempt := 0

	err := backoff.RetryNotify(func() error {
		attempt++

		err := operation()
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, r.policy(ctx), func(err error, wait time.Duration) {
		if r.metrics != nil {
			r.metrics.ConflictRetries.Inc()
		}
		r.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("lock conflict, retrying")
	})

	if isRetryableError(err) {
		return fmt.Errorf("%w: %v", domain.ErrStorageConflict, err)
	}

	return err
}

// isRetryableError reports lock conflicts worth another attempt.
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
