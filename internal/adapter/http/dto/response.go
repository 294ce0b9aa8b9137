package dto

import (
	"time"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// DetailResponse carries a human readable outcome or error.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is returned by a successful transfer.
type MessageResponse struct {
	Message string `json:"message"`
}

// TransactionResponse represents a ledger record.
type TransactionResponse struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	TransactionType string    `json:"transaction_type"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Timestamp       time.Time `json:"timestamp"`
}

// TransactionFromDomain converts a domain record to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:              t.ID,
		AccountID:       t.AccountID,
		TransactionType: string(t.Direction),
		Amount:          t.Amount.StringFixed(domain.AmountScale),
		Currency:        t.Currency,
		Timestamp:       t.CreatedAt,
	}
}

// TransactionsFromDomain converts domain records to responses.
func TransactionsFromDomain(records []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(records))
	for i, t := range records {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// AccountResponse represents an account.
type AccountResponse struct {
	ID         string    `json:"account_id"`
	IBAN       string    `json:"iban"`
	OwnerID    string    `json:"user"`
	Currency   string    `json:"currency"`
	Balance    string    `json:"balance"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AccountFromDomain converts a domain account to a response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:         a.ID,
		IBAN:       a.IBAN,
		OwnerID:    a.OwnerID,
		Currency:   a.Currency,
		Balance:    a.Balance.StringFixed(domain.AmountScale),
		IsApproved: a.IsApproved,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// CardResponse represents a debit card.
type CardResponse struct {
	CardNumber     string    `json:"card_number"`
	AccountID      string    `json:"connected_account"`
	IsApproved     bool      `json:"is_approved"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// CardFromDomain converts a domain card to a response.
func CardFromDomain(c *domain.DebitCard) *CardResponse {
	return &CardResponse{
		CardNumber:     c.CardNumber,
		AccountID:      c.AccountID,
		IsApproved:     c.IsApproved,
		ExpirationDate: c.ExpiresAt,
	}
}

// ConsistencyResponse reports a ledger-wide check.
type ConsistencyResponse struct {
	TotalBalance string `json:"total_balance"`
	NetRecorded  string `json:"net_recorded"`
	Consistent   bool   `json:"consistent"`
}

// ConsistencyFromReport converts a consistency report to a response.
func ConsistencyFromReport(r *usecase.ConsistencyReport) *ConsistencyResponse {
	return &ConsistencyResponse{
		TotalBalance: r.TotalBalance.StringFixed(domain.AmountScale),
		NetRecorded:  r.NetRecorded.StringFixed(domain.AmountScale),
		Consistent:   r.Consistent,
	}
}

// ReconciliationResponse reports a single account check.
type ReconciliationResponse struct {
	AccountID   string `json:"account_id"`
	Balance     string `json:"balance"`
	NetRecorded string `json:"net_recorded"`
	Difference  string `json:"difference"`
	Consistent  bool   `json:"consistent"`
}

// ReconciliationFromReport converts a reconciliation report to a response.
func ReconciliationFromReport(r *usecase.ReconciliationReport) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:   r.AccountID,
		Balance:     r.Balance.StringFixed(domain.AmountScale),
		NetRecorded: r.NetRecorded.StringFixed(domain.AmountScale),
		Difference:  r.Difference.StringFixed(domain.AmountScale),
		Consistent:  r.Consistent,
	}
}
