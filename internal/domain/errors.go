package domain

import "errors"

var (
	// Input errors
	ErrInvalidInput = errors.New("invalid input")

	// Resolution errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrReceiverNotFound = errors.New("receiver account not found")
	ErrCardNotFound     = errors.New("debit card not found")

	// Gate errors
	ErrCardRequired         = errors.New("an approved debit card is required")
	ErrReceiverCardRequired = errors.New("receiver does not hold an approved debit card")
	ErrInsufficientBalance  = errors.New("insufficient balance")

	// Storage errors
	ErrStorageConflict = errors.New("concurrent update conflict, try again")

	// Collaborator errors
	ErrAccountExists  = errors.New("user already owns an account")
	ErrCardExists     = errors.New("a debit card is already connected to this account")
	ErrAccountPending = errors.New("bank account must be approved first")
)
