package refresh

import (
	"context"
	"errors"
	"time"
)

// RefreshToken is the server-side record of a rotating opaque refresh token.
// The client only ever holds the Token string; everything else is metadata
// driving the rotation state machine:
//
//	Active -> Rotated (ReplacedBy set) | Revoked | Expired
//
// A lookup that lands on a rotated record means an old token is being
// replayed - a compromise signal, not a routine miss.
type RefreshToken struct {
	Token       string     // high-entropy opaque string, treated as a secret at rest
	UserID      string     // owning user
	APITokenID  string     // non-empty when this chain backs a scoped API token
	CreatedAt   time.Time  // issue time
	ExpiresAt   time.Time  // hard expiry, checked against now on every use
	CreatedByIP string     // requester IP at issue time
	RevokedAt   *time.Time // set on revoke or rotation
	ReplacedBy  string     // successor token when rotated away
}

// Expired reports whether the token's hard expiry has passed.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Revoked reports whether the token was revoked or rotated away.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Rotated reports whether the token was replaced by a successor.
func (t *RefreshToken) Rotated() bool {
	return t.Revoked() && t.ReplacedBy != ""
}

// Active reports whether the token is still usable.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked() && !t.Expired(now)
}

// Repo manages server-side storage of refresh tokens, keyed by token value.
//
// MarkRotated and MarkRevoked must be single conditional updates: with any
// number of concurrent callers for the same token, exactly one observes true.
type Repo interface {
	Insert(ctx context.Context, token *RefreshToken) error
	Get(ctx context.Context, token string) (*RefreshToken, error)

	// MarkRotated revokes the token and records its successor, but only if it
	// is still unrevoked and unexpired at the given instant. Returns false
	// when another caller got there first.
	MarkRotated(ctx context.Context, token, replacedBy string, at time.Time) (bool, error)

	// MarkRevoked terminally revokes the token if it is still unrevoked.
	MarkRevoked(ctx context.Context, token string, at time.Time) (bool, error)

	// RevokeAllForUser revokes every live token in the given chain family
	// (interactive chains when apiTokenID is empty, otherwise that API
	// token's chain). Returns how many tokens were revoked.
	RevokeAllForUser(ctx context.Context, userID, apiTokenID string, at time.Time) (int, error)

	// DeleteExpired removes tokens whose expiry predates the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// ErrNotFound is returned by Get for unknown token values.
var ErrNotFound = errors.New("refresh token not found")
