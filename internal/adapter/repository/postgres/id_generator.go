package postgres

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates ULID-based IDs. IDs from one process sort in
// generation order.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}

// ReferenceGenerator builds the prefixed identifiers shown to customers.
type ReferenceGenerator struct{}

// NewReferenceGenerator creates a new ReferenceGenerator.
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{}
}

// AccountID returns ACCT_ followed by 8 hex characters.
func (g *ReferenceGenerator) AccountID() string {
	return "ACCT_" + randomHex(8)
}

// IBAN returns IBAN_ followed by 12 hex characters.
func (g *ReferenceGenerator) IBAN() string {
	return "IBAN_" + randomHex(12)
}

// CardNumber returns CARD_ followed by 10 hex characters.
func (g *ReferenceGenerator) CardNumber() string {
	return "CARD_" + randomHex(10)
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
