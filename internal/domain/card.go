package domain

import "time"

// CardValidity is how long a newly issued debit card stays usable.
const CardValidity = 365 * 24 * time.Hour

// DebitCard is attached to exactly one account.
type DebitCard struct {
	ID         string
	CardNumber string
	AccountID  string
	IsApproved bool
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Authorizes reports whether the card lets its account move money at the given time.
func (c *DebitCard) Authorizes(at time.Time) bool {
	return c.IsApproved && c.ExpiresAt.After(at)
}
