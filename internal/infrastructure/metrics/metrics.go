package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Money movement metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationAmount   *prometheus.HistogramVec
	ConflictRetries   prometheus.Counter

	// Account metrics
	AccountsOpened   prometheus.Counter
	AccountsApproved prometheus.Counter
	CardsIssued      prometheus.Counter

	// Ledger metrics
	LedgerChecks *prometheus.CounterVec

	// API metrics
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	HTTPInFlight       prometheus.Gauge
	IdempotencyReplays prometheus.Counter
	RateLimitHits      prometheus.Counter
	AuthFailures       *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// New creates all metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_operations_total",
				Help: "Money movement operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankledger_operation_duration_seconds",
				Help:    "Duration of money movement operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OperationAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankledger_operation_amount",
				Help:    "Amounts of successful money movements",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"operation"},
		),
		ConflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_storage_conflict_retries_total",
			Help: "Retries caused by serialization failures or deadlocks",
		}),

		AccountsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_accounts_opened_total",
			Help: "Total accounts opened",
		}),
		AccountsApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_accounts_approved_total",
			Help: "Total accounts approved",
		}),
		CardsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_cards_issued_total",
			Help: "Total debit cards issued",
		}),

		LedgerChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_ledger_checks_total",
				Help: "Ledger consistency checks by result",
			},
			[]string{"result"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bankledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bankledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		IdempotencyReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_idempotency_replays_total",
			Help: "Responses replayed from the idempotency store",
		}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_rate_limit_hits_total",
			Help: "Total rate limit hits",
		}),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bankledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_outbox_published_total",
			Help: "Outbox events published",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "bankledger_outbox_failures_total",
			Help: "Outbox events that failed to publish",
		}),
	}
}
