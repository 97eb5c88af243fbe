package apitoken

import (
	"context"
	"time"
)

// APIToken is the stored record of a long-lived scoped token, independent of
// the interactive-login session chain. Scopes are immutable after issuance;
// revocation is monotonic.
type APIToken struct {
	ID          string     // jti carried by the signed token
	UserID      string     // owning user
	Description string     // user-supplied label
	Scopes      []string   // immutable scope list from the closed enumeration
	CreatedAt   time.Time  //
	ExpiresAt   time.Time  //
	LastUsedAt  *time.Time // updated on each successful validation
	UsageCount  int64      // successful validations
	RevokedAt   *time.Time // set once, never cleared
}

// Expired reports whether the token's lifetime has passed.
func (t *APIToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Revoked reports whether the token has been revoked.
func (t *APIToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Repo manages persistence of API token records.
type Repo interface {
	Insert(ctx context.Context, token *APIToken) error
	Get(ctx context.Context, id string) (*APIToken, error)
	ListByUser(ctx context.Context, userID string) ([]*APIToken, error)

	// MarkRevoked revokes the token if it belongs to the user and is not
	// already revoked. Returns false otherwise - revoking twice is not an
	// error, the second call just reports not-found.
	MarkRevoked(ctx context.Context, id, userID string, at time.Time) (bool, error)

	// RecordUsage bumps UsageCount and LastUsedAt.
	RecordUsage(ctx context.Context, id string, at time.Time) error
}
