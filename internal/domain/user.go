package domain

import (
	"errors"
)

// User is the authenticated caller as carried by the bearer token.
type User struct {
	ID   string
	Role Role
}

// Role represents a user's access level
type Role string

const (
	// RoleClient owns at most one account and moves money from it
	RoleClient Role = "client"
	// RoleBanker approves accounts and sees every account's history
	RoleBanker Role = "banker"
)

var validRoles = map[Role]bool{
	RoleClient: true,
	RoleBanker: true,
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanViewAll checks if the role can see every account's transactions.
func (r Role) CanViewAll() bool {
	return r == RoleBanker
}

// Authentication errors.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
