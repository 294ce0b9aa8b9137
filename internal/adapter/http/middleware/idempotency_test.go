package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase/mocks"
)

func keyedRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposit", strings.NewReader(`{}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req.WithContext(WithUser(req.Context(), domain.User{ID: "alice", Role: domain.RoleClient}))
}

func TestIdempotencyMiddleware_StoreErrorStopsRequest(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().Reserve(gomock.Any(), "alice:/api/v1/deposit:key-err", time.Hour).
		Return(false, nil, context.DeadlineExceeded)

	mw := NewIdempotencyMiddleware(store, time.Hour, nil)
	rec := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be called when store errors")
	})).ServeHTTP(rec, keyedRequest("key-err"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIdempotencyMiddleware_InFlightIsConflict(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().Reserve(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil, nil)

	rec := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, nil).Wrap(http.NotFoundHandler()).ServeHTTP(rec, keyedRequest("k"))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIdempotencyMiddleware_CompletesSuccessfulResponse(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().Reserve(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil, nil)
	store.EXPECT().Complete(gomock.Any(), "alice:/api/v1/deposit:k", gomock.Any(), time.Hour).
		DoAndReturn(func(_ context.Context, _ string, payload []byte, _ time.Duration) error {
			assert.Contains(t, string(payload), `"status":201`)
			return nil
		})

	rec := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"detail":"ok"}`))
	})).ServeHTTP(rec, keyedRequest("k"))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestIdempotencyMiddleware_ReleasesFailedResponse(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	store.EXPECT().Reserve(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil, nil)
	store.EXPECT().Release(gomock.Any(), "alice:/api/v1/deposit:k").Return(nil)

	rec := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})).ServeHTTP(rec, keyedRequest("k"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))
	stored := []byte(`{"status":201,"content_type":"application/json","body":"eyJkZXRhaWwiOiJvayJ9"}`)
	store.EXPECT().Reserve(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, stored, nil)

	rec := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, nil).Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run on replay")
	})).ServeHTTP(rec, keyedRequest("k"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(IdempotencyReplayHeader))
	assert.JSONEq(t, `{"detail":"ok"}`, rec.Body.String())
}

func TestIdempotencyMiddleware_PassesThroughWithoutKey(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deposit", nil)
	NewIdempotencyMiddleware(store, time.Hour, nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestIdempotencyMiddleware_RejectsLongKey(t *testing.T) {
	store := mocks.NewMockIdempotencyStore(gomock.NewController(t))

	rec := httptest.NewRecorder()
	NewIdempotencyMiddleware(store, time.Hour, nil).Wrap(http.NotFoundHandler()).
		ServeHTTP(rec, keyedRequest(strings.Repeat("k", maxIdempotencyKeyLen+1)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
