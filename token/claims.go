package token

import (
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claim schema version. Bump when the shape of Claims changes so the validator
// can reject tokens minted against a different schema.
const claimsVersion = 1

// Token use discriminators, carried in the token_use claim.
const (
	UseAccess = "access" // short-lived interactive session token
	UseAPI    = "api"    // long-lived scoped API token
)

// Claims is the fixed, versioned claim schema shared by the issuer and
// validator. Tokens are self-contained: validation never consults a store.
type Claims struct {
	jwtlib.RegisteredClaims

	Email    string   `json:"email,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
	TokenUse string   `json:"token_use"`
	Version  int      `json:"ver"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// HasScope reports whether the token grants the required scope.
func (c *Claims) HasScope(required Scope) bool {
	return HasScope(c.Scopes, required)
}
