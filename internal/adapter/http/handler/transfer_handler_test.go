package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/bankledger/internal/adapter/http/middleware"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

type moverStub struct {
	transferFn func(ctx context.Context, input usecase.TransferInput) (*usecase.TransferResult, error)
	withdrawFn func(ctx context.Context, input usecase.MovementInput) (*domain.Transaction, error)
	depositFn  func(ctx context.Context, input usecase.MovementInput) (*domain.Transaction, error)
}

func (s *moverStub) Transfer(ctx context.Context, input usecase.TransferInput) (*usecase.TransferResult, error) {
	return s.transferFn(ctx, input)
}

func (s *moverStub) Withdraw(ctx context.Context, input usecase.MovementInput) (*domain.Transaction, error) {
	return s.withdrawFn(ctx, input)
}

func (s *moverStub) Deposit(ctx context.Context, input usecase.MovementInput) (*domain.Transaction, error) {
	return s.depositFn(ctx, input)
}

func clientRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	return req.WithContext(middleware.WithUser(req.Context(), domain.User{ID: "user-1", Role: domain.RoleClient}))
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body["detail"]
}

func TestTransferHandler_Transfer_Success(t *testing.T) {
	var captured usecase.TransferInput
	h := NewTransferHandler(&moverStub{
		transferFn: func(_ context.Context, input usecase.TransferInput) (*usecase.TransferResult, error) {
			captured = input
			return &usecase.TransferResult{}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Transfer(rec, clientRequest(http.MethodPost, `{"receiver_iban":" IBAN_1 ","amount":"12.30"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"Transfer successful."}`, rec.Body.String())
	assert.Equal(t, "user-1", captured.SenderUserID)
	assert.Equal(t, "IBAN_1", captured.ReceiverIBAN)
	assert.True(t, captured.Amount.Equal(decimal.RequireFromString("12.3")))
}

func TestTransferHandler_Transfer_ValidationSkipsEngine(t *testing.T) {
	h := NewTransferHandler(&moverStub{
		transferFn: func(context.Context, usecase.TransferInput) (*usecase.TransferResult, error) {
			t.Fatal("engine must not be called")
			return nil, nil
		},
	})

	for _, body := range []string{`{"amount":"1.00"}`, `{"receiver_iban":"IBAN_1","amount":"-1"}`, `not json`} {
		rec := httptest.NewRecorder()
		h.Transfer(rec, clientRequest(http.MethodPost, body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestTransferHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{name: "gate", err: domain.ErrReceiverCardRequired, status: http.StatusBadRequest, detail: domain.ErrReceiverCardRequired.Error()},
		{name: "balance", err: domain.ErrInsufficientBalance, status: http.StatusBadRequest, detail: "insufficient balance"},
		{name: "conflict", err: domain.ErrStorageConflict, status: http.StatusConflict, detail: domain.ErrStorageConflict.Error()},
		{name: "unexpected", err: errors.New("pq: connection reset"), status: http.StatusInternalServerError, detail: detailServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTransferHandler(&moverStub{
				withdrawFn: func(context.Context, usecase.MovementInput) (*domain.Transaction, error) {
					return nil, tt.err
				},
			})

			rec := httptest.NewRecorder()
			h.Withdraw(rec, clientRequest(http.MethodPost, `{"amount":"1.00"}`))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.detail, detailOf(t, rec))
		})
	}
}

func TestTransferHandler_Deposit_Success(t *testing.T) {
	h := NewTransferHandler(&moverStub{
		depositFn: func(_ context.Context, input usecase.MovementInput) (*domain.Transaction, error) {
			assert.Equal(t, "user-1", input.UserID)
			return &domain.Transaction{}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Deposit(rec, clientRequest(http.MethodPost, `{"amount":"5"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Deposit successful.", detailOf(t, rec))
}

func TestTransferHandler_RequiresUser(t *testing.T) {
	h := NewTransferHandler(&moverStub{})

	rec := httptest.NewRecorder()
	h.Deposit(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"5"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
