package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

func TestRateLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1, metrics.New(prometheus.NewRegistry()))
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("1.2.3.4:1000"))
	assert.Equal(t, http.StatusTooManyRequests, call("1.2.3.4:2000"))
	assert.Equal(t, http.StatusOK, call("5.6.7.8:1000"))
}

func TestRateLimiterCleanupDropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.limiter("1.1.1.1")
	now = now.Add(time.Hour)
	rl.limiter("2.2.2.2")

	rl.Cleanup(30 * time.Minute)

	assert.NotContains(t, rl.visitors, "1.1.1.1")
	assert.Contains(t, rl.visitors, "2.2.2.2")
}
