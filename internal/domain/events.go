package domain

import "time"

// Event types
const (
	EventTypeTransferCompleted   = "transfer.completed"
	EventTypeWithdrawalCompleted = "withdrawal.completed"
	EventTypeDepositCompleted    = "deposit.completed"
	EventTypeAccountOpened       = "account.opened"
	EventTypeAccountApproved     = "account.approved"
	EventTypeCardIssued          = "card.issued"
)

// Aggregate types
const (
	AggregateTypeAccount = "account"
	AggregateTypeCard    = "card"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}
