package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/infrastructure/metrics"
	"github.com/iho/bankledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from the store.
	IdempotencyReplayHeader = "X-Idempotency-Replay"

	maxIdempotencyKeyLen = 255
)

// storedResponse is what gets cached for a completed request.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware replays the first 2xx response for a repeated key.
// Keys are scoped to the caller and the route.
type IdempotencyMiddleware struct {
	store   usecase.IdempotencyStore
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration, m *metrics.Metrics) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = usecase.IdempotencyKeyTTL
	}

	return &IdempotencyMiddleware{store: store, ttl: ttl, metrics: m}
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyKeyHeader)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		if len(key) > maxIdempotencyKeyLen {
			writeDetail(w, http.StatusBadRequest, "Idempotency-Key is too long.")
			return
		}

		scoped := r.URL.Path + ":" + key
		if user, ok := UserFromContext(r.Context()); ok {
			scoped = user.ID + ":" + scoped
		}

		log := zerolog.Ctx(r.Context())

		reserved, stored, err := m.store.Reserve(r.Context(), scoped, m.ttl)
		if err != nil {
			log.Error().Err(err).Msg("idempotency reserve failed")
			writeDetail(w, http.StatusInternalServerError, "idempotency check failed")
			return
		}

		if !reserved {
			m.replay(w, stored, log)
			return
		}

		// The request context may be cancelled by the time the handler returns.
		storeCtx := context.WithoutCancel(r.Context())
		completed := false
		defer func() {
			if completed {
				return
			}
			if err := m.store.Release(storeCtx, scoped); err != nil {
				log.Error().Err(err).Msg("idempotency release failed")
			}
		}()

		rec := &bodyRecorder{statusRecorder: newStatusRecorder(w), body: &bytes.Buffer{}}
		next.ServeHTTP(rec, r)

		if rec.statusCode < 200 || rec.statusCode >= 300 {
			return
		}

		payload, err := json.Marshal(storedResponse{
			Status:      rec.statusCode,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			log.Error().Err(err).Msg("idempotency encode failed")
			return
		}

		if err := m.store.Complete(storeCtx, scoped, payload, m.ttl); err != nil {
			log.Error().Err(err).Msg("idempotency complete failed")
			return
		}
		completed = true
	})
}

func (m *IdempotencyMiddleware) replay(w http.ResponseWriter, stored []byte, log *zerolog.Logger) {
	if stored == nil {
		writeDetail(w, http.StatusConflict, "A request with this Idempotency-Key is still in progress.")
		return
	}

	var resp storedResponse
	if err := json.Unmarshal(stored, &resp); err != nil {
		log.Error().Err(err).Msg("idempotency decode failed")
		writeDetail(w, http.StatusInternalServerError, "idempotency check failed")
		return
	}

	if m.metrics != nil {
		m.metrics.IdempotencyReplays.Inc()
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.Header().Set(IdempotencyReplayHeader, "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

type bodyRecorder struct {
	*statusRecorder

	body *bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.statusRecorder.Write(b)
}
