package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency assigned to accounts opened without one.
const DefaultCurrency = "EUR"

// Account is a client's bank account. Each user owns at most one.
type Account struct {
	ID         string
	IBAN       string
	OwnerID    string
	Currency   string
	Balance    decimal.Decimal
	IsApproved bool
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	return nil
}

// ApplyDebit returns new balance after debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}
