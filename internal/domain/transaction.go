package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerCurrency is stamped on every transaction record regardless of the
// account currency.
const LedgerCurrency = "EUR"

// Direction tells whether a record decreased or increased the account balance.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// IsValid checks the direction is one of the two known values.
func (d Direction) IsValid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// Transaction is an immutable ledger record against a single account.
type Transaction struct {
	ID        string
	AccountID string
	Direction Direction
	Amount    decimal.Decimal
	Currency  string
	CreatedAt time.Time
}

// Signed returns the amount with the sign of its effect on the balance.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}

	return t.Amount
}
