package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "two decimals", raw: "30.00", want: "30"},
		{name: "integer", raw: "25", want: "25"},
		{name: "surrounding spaces", raw: " 10.5 ", want: "10.5"},
		{name: "empty", raw: "", wantErr: true},
		{name: "zero", raw: "0.00", wantErr: true},
		{name: "negative", raw: "-5", wantErr: true},
		{name: "not a number", raw: "abc", wantErr: true},
		{name: "three decimals", raw: "1.001", wantErr: true},
		{name: "above maximum", raw: "100000000.00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestValidateAmountAcceptsMaximum(t *testing.T) {
	t.Parallel()

	if err := ValidateAmount(decimal.RequireFromString(MaxAmount)); err != nil {
		t.Fatalf("expected maximum amount to be valid, got %v", err)
	}
	if err := ValidateAmount(decimal.RequireFromString("0.01")); err != nil {
		t.Fatalf("expected one cent to be valid, got %v", err)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	t.Parallel()

	got, err := NormalizeCurrency("")
	if err != nil || got != DefaultCurrency {
		t.Fatalf("expected default currency, got %q err=%v", got, err)
	}

	got, err = NormalizeCurrency("usd")
	if err != nil || got != "USD" {
		t.Fatalf("expected uppercase conversion to succeed, got %q err=%v", got, err)
	}

	if _, err := NormalizeCurrency("XYZ"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	limit, offset := ValidatePagination(0, -3)
	if limit != DefaultPageSize || offset != 0 {
		t.Fatalf("expected defaults, got limit=%d offset=%d", limit, offset)
	}

	limit, _ = ValidatePagination(MaxPageSize+1, 0)
	if limit != MaxPageSize {
		t.Fatalf("expected limit capped at %d, got %d", MaxPageSize, limit)
	}
}
