package ramp

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction selects the buy or sell side of a hosted session.
type Direction string

const (
	DirectionOnramp  Direction = "onramp"
	DirectionOfframp Direction = "offramp"
)

// MinFiatAmount is the floor the hosted provider accepts; requests below it
// are rejected before any token issuance is attempted.
var MinFiatAmount = decimal.NewFromInt(10)

// Address pairs a wallet address with the blockchains it should be
// credentialed for.
type Address struct {
	Address     string   `json:"address"`
	Blockchains []string `json:"blockchains"`
}

// SessionCredential is the short-lived artifact authorizing a hosted ramp
// session. Expiry is enforced by the remote issuer; callers only check for
// an empty token, which selects fallback URL construction.
type SessionCredential struct {
	Token     string
	ChannelID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the credential carries a usable token.
func (c *SessionCredential) Valid() bool {
	return c != nil && c.Token != ""
}

// Request describes one hosted on/off-ramp session to build a URL for.
// Credential is optional: its absence selects fallback mode, never an error.
type Request struct {
	Direction     Direction
	Asset         string
	Network       string
	FiatAmount    decimal.Decimal
	FiatCurrency  string
	PaymentMethod string // payment method (onramp) or cashout method (offramp)
	UserAddress   string
	RedirectURL   string
	Credential    *SessionCredential
}
