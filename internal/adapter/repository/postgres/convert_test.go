package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAmountNumericRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0", want: "0.00"},
		{in: "0.01", want: "0.01"},
		{in: "30", want: "30.00"},
		{in: "1234.56", want: "1234.56"},
		{in: "9999999999.99", want: "9999999999.99"},
		{in: "-70.5", want: "-70.50"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n := amountToNumeric(decimal.RequireFromString(tt.in))
			got := numericToAmount(n)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestNumericToAmountNull(t *testing.T) {
	assert.True(t, numericToAmount(pgtype.Numeric{}).IsZero())
}

func TestTimestamptzConversions(t *testing.T) {
	local := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))

	ts := utcTimestamptz(local)
	assert.True(t, ts.Valid)
	assert.Equal(t, time.UTC, ts.Time.Location())
	assert.True(t, ts.Time.Equal(local))

	assert.True(t, timestamptzToTime(ts).Equal(local))
	assert.True(t, timestamptzToTime(pgtype.Timestamptz{}).IsZero())

	assert.Nil(t, timestamptzToTimePtr(pgtype.Timestamptz{}))
	if p := timestamptzToTimePtr(ts); assert.NotNil(t, p) {
		assert.True(t, p.Equal(local))
	}
}
