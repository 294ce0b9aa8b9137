package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bankledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/bankledger/internal/adapter/http/middleware"
	"github.com/iho/bankledger/internal/adapter/repository/memory"
	"github.com/iho/bankledger/internal/adapter/repository/postgres"
	redisstore "github.com/iho/bankledger/internal/adapter/repository/redis"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/auth"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
	"github.com/iho/bankledger/internal/usecase"
)

// api is the full HTTP stack on a memory store.
type api struct {
	router http.Handler
	jwt    *auth.JWTManager
	redis  *miniredis.Miniredis
}

func newAPI(t *testing.T, opts ...func(*RouterConfig)) *api {
	t.Helper()

	store := memory.NewStore()
	txManager := memory.NewTxManager(store)
	accountRepo := memory.NewAccountRepository(store)
	txRepo := memory.NewTransactionRepository(store)
	outbox := memory.NewOutboxRepository(store)
	ids := postgres.NewULIDGenerator()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	jwt := auth.NewJWTManager("test-secret", time.Hour)

	cfg := RouterConfig{
		TransferHandler: handler.NewTransferHandler(
			usecase.NewTransferUseCase(txManager, accountRepo, accountRepo, txRepo, outbox, nil, ids, usecase.WithTransferMetrics(m)),
		),
		TransactionHandler: handler.NewTransactionHandler(usecase.NewHistoryUseCase(accountRepo, txRepo)),
		AccountHandler: handler.NewAccountHandler(
			usecase.NewAccountUseCase(txManager, accountRepo, memory.NewCardRepository(store), outbox, ids, postgres.NewReferenceGenerator(), m),
		),
		LedgerHandler:    handler.NewLedgerHandler(usecase.NewLedgerUseCase(memory.NewLedgerRepository(store), accountRepo, m)),
		HealthHandler:    handler.NewHealthHandler(),
		TokenVerifier:    jwt,
		IdempotencyStore: redisstore.NewIdempotencyStore(client),
		IdempotencyTTL:   time.Hour,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:           zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &api{router: NewRouter(cfg), jwt: jwt, redis: mr}
}

func (a *api) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()

	token, err := a.jwt.Generate(domain.User{ID: userID, Role: role})
	require.NoError(t, err)

	return token
}

func (a *api) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:4321"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	return rec
}

// onboard opens, approves and carding an account for userID and returns its IBAN.
func (a *api) onboard(t *testing.T, userID string) string {
	t.Helper()

	client := a.token(t, userID, domain.RoleClient)
	banker := a.token(t, "banker-1", domain.RoleBanker)

	rec := a.do(t, http.MethodPost, "/api/v1/client/account", client, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var account struct {
		ID   string `json:"account_id"`
		IBAN string `json:"iban"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))

	rec = a.do(t, http.MethodPost, "/api/v1/banker/accounts/"+account.ID+"/approve", banker, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/banker/accounts/"+account.ID+"/cards", banker, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return account.IBAN
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestNewRouter_HealthEndpointsAvailable(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/ready", "", "").Code)
}

func TestNewRouter_ReadinessReportsFailingDependency(t *testing.T) {
	a := newAPI(t, func(cfg *RouterConfig) {
		cfg.HealthHandler = handler.NewHealthHandler(handler.Check{
			Name: "postgres",
			Ping: func(context.Context) error { return errors.New("connection refused") },
		})
	})

	rec := a.do(t, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", decodeBody(t, rec)["postgres"])
}

func TestNewRouter_AuthenticationAndRoles(t *testing.T) {
	a := newAPI(t)
	client := a.token(t, "alice", domain.RoleClient)
	banker := a.token(t, "banker-1", domain.RoleBanker)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "no token", method: http.MethodPost, path: "/api/v1/transfer", want: http.StatusUnauthorized},
		{name: "garbage token", method: http.MethodPost, path: "/api/v1/withdraw", token: "nope", want: http.StatusUnauthorized},
		{name: "banker cannot deposit", method: http.MethodPost, path: "/api/v1/deposit", token: banker, want: http.StatusForbidden},
		{name: "client cannot list accounts", method: http.MethodGet, path: "/api/v1/banker/accounts", token: client, want: http.StatusForbidden},
		{name: "banker lists accounts", method: http.MethodGet, path: "/api/v1/banker/accounts", token: banker, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.token, `{"amount":"1.00"}`)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody(t, rec))
		})
	}
}

func TestNewRouter_MoneyMovementFlow(t *testing.T) {
	a := newAPI(t)
	a.onboard(t, "alice")
	bobIBAN := a.onboard(t, "bob")
	alice := a.token(t, "alice", domain.RoleClient)
	bob := a.token(t, "bob", domain.RoleClient)

	rec := a.do(t, http.MethodPost, "/api/v1/deposit", alice, `{"amount":"100.00"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Deposit successful.", decodeBody(t, rec)["detail"])

	rec = a.do(t, http.MethodPost, "/api/v1/transfer", alice, `{"receiver_iban":"`+bobIBAN+`","amount":"25.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Transfer successful.", decodeBody(t, rec)["message"])

	rec = a.do(t, http.MethodPost, "/api/v1/withdraw", bob, `{"amount":"0.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Withdrawal successful.", decodeBody(t, rec)["detail"])

	rec = a.do(t, http.MethodGet, "/api/v1/client/account", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "74.50", decodeBody(t, rec)["balance"])

	rec = a.do(t, http.MethodGet, "/api/v1/transactions", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var own []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &own))
	require.Len(t, own, 2)
	assert.Equal(t, "CREDIT", own[0]["transaction_type"])
	assert.Equal(t, "DEBIT", own[1]["transaction_type"])
	assert.Equal(t, "25.50", own[1]["amount"])
	assert.Equal(t, "EUR", own[1]["currency"])

	banker := a.token(t, "banker-1", domain.RoleBanker)
	rec = a.do(t, http.MethodGet, "/api/v1/transactions", banker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 4)

	rec = a.do(t, http.MethodGet, "/api/v1/banker/ledger/consistency", banker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["consistent"])
	assert.Equal(t, "99.50", body["total_balance"])
}

func TestNewRouter_BusinessRejectionsAre400(t *testing.T) {
	a := newAPI(t)
	a.onboard(t, "alice")
	alice := a.token(t, "alice", domain.RoleClient)
	stranger := a.token(t, "carol", domain.RoleClient)

	tests := []struct {
		name   string
		token  string
		path   string
		body   string
		detail string
	}{
		{name: "insufficient balance", token: alice, path: "/api/v1/withdraw", body: `{"amount":"1.00"}`, detail: "insufficient balance"},
		{name: "not a number", token: alice, path: "/api/v1/deposit", body: `{"amount":"abc"}`, detail: "invalid input"},
		{name: "too many decimals", token: alice, path: "/api/v1/deposit", body: `{"amount":"1.001"}`, detail: "decimal places"},
		{name: "missing amount", token: alice, path: "/api/v1/deposit", body: `{}`, detail: "amount failed required"},
		{name: "unknown field", token: alice, path: "/api/v1/deposit", body: `{"amount":"1","x":1}`, detail: "malformed"},
		{name: "unknown receiver", token: alice, path: "/api/v1/transfer", body: `{"receiver_iban":"IBAN_x","amount":"1.00"}`, detail: "receiver account not found"},
		{name: "no account", token: stranger, path: "/api/v1/deposit", body: `{"amount":"1.00"}`, detail: "account not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, tt.path, tt.token, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decodeBody(t, rec)["detail"], tt.detail)
		})
	}
}

func TestNewRouter_CardRequiredBeforeMovingMoney(t *testing.T) {
	a := newAPI(t)
	alice := a.token(t, "alice", domain.RoleClient)

	rec := a.do(t, http.MethodPost, "/api/v1/client/account", alice, `{"currency":"usd"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "USD", decodeBody(t, rec)["currency"])

	rec = a.do(t, http.MethodPost, "/api/v1/deposit", alice, `{"amount":"5.00"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrCardRequired.Error(), decodeBody(t, rec)["detail"])

	rec = a.do(t, http.MethodGet, "/api/v1/client/card", alice, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRouter_IdempotentDepositIsAppliedOnce(t *testing.T) {
	a := newAPI(t)
	a.onboard(t, "alice")
	alice := a.token(t, "alice", domain.RoleClient)

	first := a.do(t, http.MethodPost, "/api/v1/deposit", alice, `{"amount":"10.00"}`, apimiddleware.IdempotencyKeyHeader, "dep-1")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(apimiddleware.IdempotencyReplayHeader))

	second := a.do(t, http.MethodPost, "/api/v1/deposit", alice, `{"amount":"10.00"}`, apimiddleware.IdempotencyKeyHeader, "dep-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(apimiddleware.IdempotencyReplayHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := a.do(t, http.MethodGet, "/api/v1/client/account", alice, "")
	assert.Equal(t, "10.00", decodeBody(t, rec)["balance"])
}

func TestNewRouter_FailedRequestReleasesIdempotencyKey(t *testing.T) {
	a := newAPI(t)
	a.onboard(t, "alice")
	alice := a.token(t, "alice", domain.RoleClient)

	rec := a.do(t, http.MethodPost, "/api/v1/withdraw", alice, `{"amount":"5.00"}`, apimiddleware.IdempotencyKeyHeader, "wd-1")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/deposit", alice, `{"amount":"5.00"}`).Code)

	rec = a.do(t, http.MethodPost, "/api/v1/withdraw", alice, `{"amount":"5.00"}`, apimiddleware.IdempotencyKeyHeader, "wd-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get(apimiddleware.IdempotencyReplayHeader))
}

func TestNewRouter_IdempotencyKeysAreScopedPerUser(t *testing.T) {
	a := newAPI(t)
	a.onboard(t, "alice")
	a.onboard(t, "bob")

	for _, user := range []string{"alice", "bob"} {
		rec := a.do(t, http.MethodPost, "/api/v1/deposit", a.token(t, user, domain.RoleClient), `{"amount":"1.00"}`,
			apimiddleware.IdempotencyKeyHeader, "shared")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, rec.Header().Get(apimiddleware.IdempotencyReplayHeader), user)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	a := newAPI(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = apimiddleware.NewRateLimiter(1, 1, nil)
	})

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, a.do(t, http.MethodGet, "/health", "", "").Code)
}

func TestNewRouter_MetricsEndpointExposesRouteLabels(t *testing.T) {
	a := newAPI(t)
	banker := a.token(t, "banker-1", domain.RoleBanker)
	a.do(t, http.MethodGet, "/api/v1/banker/accounts/ACCT_missing", banker, "")

	rec := a.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/api/v1/banker/accounts/{id}"`)
	assert.NotContains(t, rec.Body.String(), "ACCT_missing")
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	a := newAPI(t)

	routes, ok := a.router.(chi.Routes)
	require.True(t, ok)

	seen := map[string]bool{}
	require.NoError(t, chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}))

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /api/v1/transfer",
		"POST /api/v1/withdraw",
		"POST /api/v1/deposit",
		"GET /api/v1/transactions",
		"POST /api/v1/client/account",
		"GET /api/v1/banker/accounts",
		"POST /api/v1/banker/accounts/{id}/approve",
		"POST /api/v1/banker/accounts/{id}/cards",
		"GET /api/v1/banker/ledger/consistency",
	}

	for _, route := range expected {
		assert.True(t, seen[route], "expected route %s", route)
	}
}
