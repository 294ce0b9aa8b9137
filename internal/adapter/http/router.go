package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/adapter/http/handler"
	"github.com/iho/bankledger/internal/adapter/http/middleware"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
	"github.com/iho/bankledger/internal/usecase"
)

// RouterConfig holds dependencies for the router. Optional parts are left nil.
type RouterConfig struct {
	TransferHandler    *handler.TransferHandler
	TransactionHandler *handler.TransactionHandler
	AccountHandler     *handler.AccountHandler
	LedgerHandler      *handler.LedgerHandler
	HealthHandler      *handler.HealthHandler

	TokenVerifier    middleware.TokenVerifier
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	idempotent := func(next http.Handler) http.Handler { return next }
	if cfg.IdempotencyStore != nil {
		idempotent = middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Metrics).Wrap
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.TokenVerifier, cfg.Metrics))

		r.Get("/transactions", cfg.TransactionHandler.List)

		// Clients move money from their own account
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleClient))
			r.Use(idempotent)

			r.Post("/transfer", cfg.TransferHandler.Transfer)
			r.Post("/withdraw", cfg.TransferHandler.Withdraw)
			r.Post("/deposit", cfg.TransferHandler.Deposit)

			r.Post("/client/account", cfg.AccountHandler.Open)
			r.Get("/client/account", cfg.AccountHandler.GetOwn)
			r.Get("/client/card", cfg.AccountHandler.GetOwnCard)
		})

		// Bankers
		r.Route("/banker", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleBanker))
			r.Use(idempotent)

			r.Get("/accounts", cfg.AccountHandler.List)
			r.Get("/accounts/{id}", cfg.AccountHandler.Get)
			r.Post("/accounts/{id}/approve", cfg.AccountHandler.Approve)
			r.Post("/accounts/{id}/cards", cfg.AccountHandler.IssueCard)
			r.Get("/accounts/{id}/card", cfg.AccountHandler.GetCard)
			r.Get("/accounts/{id}/reconciliation", cfg.LedgerHandler.Reconcile)
			r.Get("/ledger/consistency", cfg.LedgerHandler.Consistency)
		})
	})

	return r
}
