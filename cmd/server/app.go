package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/bankledger/internal/adapter/http"
	"github.com/iho/bankledger/internal/adapter/http/handler"
	"github.com/iho/bankledger/internal/adapter/http/middleware"
	"github.com/iho/bankledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/bankledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/bankledger/internal/adapter/repository/redis"
	"github.com/iho/bankledger/internal/infrastructure/auth"
	"github.com/iho/bankledger/internal/infrastructure/config"
	"github.com/iho/bankledger/internal/infrastructure/eventpublisher"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
	"github.com/iho/bankledger/internal/infrastructure/postgres"
	"github.com/iho/bankledger/internal/infrastructure/redis"
	"github.com/iho/bankledger/internal/usecase"
)

const rateLimiterIdle = 10 * time.Minute

// accountStore is satisfied by both drivers' account repositories.
type accountStore interface {
	usecase.AccountRepository
	usecase.AccountDirectory
}

// storage is the set of repositories behind one driver.
type storage struct {
	txManager    usecase.TransactionManager
	accounts     accountStore
	cards        usecase.CardRepository
	transactions usecase.TransactionRepository
	ledger       usecase.LedgerRepository
	outbox       usecase.OutboxRepository
	retrier      usecase.Retrier
	checks       []handler.Check
	close        func()
}

// app is the wired server.
type app struct {
	handler     http.Handler
	publisher   *eventpublisher.EventPublisher
	rateLimiter *middleware.RateLimiter
	close       func()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, registry *prometheus.Registry) (*app, error) {
	m := metrics.New(registry)

	store, err := openStorage(ctx, cfg, logger, m)
	if err != nil {
		return nil, err
	}
	closers := []func(){store.close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var idempotency usecase.IdempotencyStore
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL, redis.Options{})
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		idempotency = redisRepo.NewIdempotencyStore(client)
		store.checks = append(store.checks, handler.Check{Name: "redis", Ping: redisPing(client)})
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL is empty, idempotency keys are ignored")
	}

	ids := postgresRepo.NewULIDGenerator()

	engine := usecase.NewTransferUseCase(
		store.txManager, store.accounts, store.accounts, store.transactions, store.outbox, store.retrier, ids,
		usecase.WithTransferMetrics(m),
		usecase.WithTransferLogger(logger.With().Str("component", "engine").Logger()),
	)
	accounts := usecase.NewAccountUseCase(
		store.txManager, store.accounts, store.cards, store.outbox, ids, postgresRepo.NewReferenceGenerator(), m,
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TransferHandler:    handler.NewTransferHandler(engine),
		TransactionHandler: handler.NewTransactionHandler(usecase.NewHistoryUseCase(store.accounts, store.transactions)),
		AccountHandler:     handler.NewAccountHandler(accounts),
		LedgerHandler:      handler.NewLedgerHandler(usecase.NewLedgerUseCase(store.ledger, store.accounts, m)),
		HealthHandler:      handler.NewHealthHandler(store.checks...),
		TokenVerifier:      auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration),
		IdempotencyStore:   idempotency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        rateLimiter,
		Metrics:            m,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Logger:             logger,
	})

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  eventpublisher.NewLogPublisher(logger.With().Str("component", "outbox").Logger()),
		Logger:     logger,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})

	return &app{
		handler:     router,
		publisher:   publisher,
		rateLimiter: rateLimiter,
		close:       closeAll,
	}, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory storage, data is lost on exit")
		store := memory.NewStore()
		accounts := memory.NewAccountRepository(store)

		return &storage{
			txManager:    memory.NewTxManager(store),
			accounts:     accounts,
			cards:        memory.NewCardRepository(store),
			transactions: memory.NewTransactionRepository(store),
			ledger:       memory.NewLedgerRepository(store),
			outbox:       memory.NewOutboxRepository(store),
			close:        func() {},
		}, nil

	case config.DriverPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
			DatabaseURL:    cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info().Msg("connected to postgres")

		accounts := postgresRepo.NewAccountRepository(pool)

		return &storage{
			txManager:    postgresRepo.NewTxManager(pool),
			accounts:     accounts,
			cards:        postgresRepo.NewCardRepository(pool),
			transactions: postgresRepo.NewTransactionRepository(pool),
			ledger:       postgresRepo.NewLedgerRepository(pool),
			outbox:       postgresRepo.NewOutboxRepository(pool),
			retrier:      postgresRepo.NewRetrier(cfg.RetryMaxAttempts, logger, m),
			checks:       []handler.Check{{Name: "postgres", Ping: pool.Ping}},
			close:        pool.Close,
		}, nil
	}

	return nil, errors.New("unknown storage driver " + cfg.StorageDriver)
}

func redisPing(client *goredis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// runBackground starts the outbox publisher and the rate limiter sweeper.
// Both stop when ctx is cancelled.
func (a *app) runBackground(ctx context.Context, logger zerolog.Logger) {
	go func() {
		if err := a.publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	go func() {
		ticker := time.NewTicker(rateLimiterIdle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.rateLimiter.Cleanup(rateLimiterIdle)
			}
		}
	}()
}
