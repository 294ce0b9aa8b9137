package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/auth"
	"github.com/iho/bankledger/internal/infrastructure/config"
)

func memoryConfig(redisURL string) *config.Config {
	return &config.Config{
		StorageDriver:    config.DriverMemory,
		RedisURL:         redisURL,
		JWTSecret:        "secret",
		JWTExpiration:    time.Hour,
		RateLimitRPS:     1000,
		RateLimitBurst:   1000,
		RetryMaxAttempts: 3,
		IdempotencyTTL:   time.Hour,
		OutboxInterval:   10 * time.Millisecond,
		OutboxBatchSize:  10,
	}
}

func TestNewAppMemoryDriverServesRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig("redis://" + mr.Addr())

	a, err := newApp(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	token, err := auth.NewJWTManager(cfg.JWTSecret, time.Minute).Generate(domain.User{ID: "alice", Role: domain.RoleClient})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/client/account", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestNewAppWithoutRedis(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(""), zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewAppFailsOnUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()
	mr.Close()

	_, err := newApp(context.Background(), memoryConfig(url), zerolog.Nop(), prometheus.NewRegistry())
	require.Error(t, err)
}

func TestRunBackgroundStopsOnCancel(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(""), zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	a.runBackground(ctx, zerolog.Nop())
	cancel()
}

func TestOpenStorageRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig("")
	cfg.StorageDriver = "sqlite"

	_, err := openStorage(context.Background(), cfg, zerolog.Nop(), nil)
	require.Error(t, err)
}
