package refresh

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gigledger/gigledger/mfa"
)

// DefaultExpiry is the refresh token lifetime for interactive sessions.
const DefaultExpiry = 30 * 24 * time.Hour

// ErrInvalidToken covers expired, revoked, and reused-after-rotation tokens.
// The cases are deliberately not distinguished to callers; reuse is logged as
// a security event instead.
var ErrInvalidToken = errors.New("invalid refresh token")

// Manager handles refresh token creation, validation, and rotation for one
// chain family (interactive sessions or API tokens - each gets its own
// Manager over its own Repo so the lifecycles stay independent).
type Manager struct {
	repo    Repo
	expiry  time.Duration
	logger  zerolog.Logger
	nowTime func() time.Time
}

type ManagerOption func(*Manager)

// WithExpiry overrides the token lifetime.
func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = now
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, logger zerolog.Logger, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[refresh.NewManager] repo is required")
	}

	m := &Manager{
		repo:    repo,
		expiry:  DefaultExpiry,
		logger:  logger,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Create issues a fresh Active token for the user.
func (m *Manager) Create(ctx context.Context, userID, ip string) (*RefreshToken, error) {
	return m.create(ctx, userID, "", ip)
}

// CreateForAPIToken issues a fresh Active token backing the given API token's
// rotation chain.
func (m *Manager) CreateForAPIToken(ctx context.Context, userID, apiTokenID, ip string) (*RefreshToken, error) {
	return m.create(ctx, userID, apiTokenID, ip)
}

func (m *Manager) create(ctx context.Context, userID, apiTokenID, ip string) (*RefreshToken, error) {
	value, err := mfa.GenerateOpaqueToken()
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Create] generate token")
	}

	now := m.nowTime()
	record := &RefreshToken{
		Token:       value,
		UserID:      userID,
		APITokenID:  apiTokenID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.expiry),
		CreatedByIP: ip,
	}
	if err := m.repo.Insert(ctx, record); err != nil {
		return nil, errors.Wrap(err, "[Manager.Create] repo.Insert")
	}
	return record, nil
}

// Validate looks a token up and returns its record only while it is Active.
// Expired, revoked, and rotated tokens all come back as ErrInvalidToken; a hit
// on a rotated token additionally raises a reuse security event.
func (m *Manager) Validate(ctx context.Context, token string) (*RefreshToken, error) {
	record, err := m.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, "[Manager.Validate] repo.Get")
	}

	now := m.nowTime()
	if record.Rotated() {
		m.logReuse(record)
		return nil, ErrInvalidToken
	}
	if !record.Active(now) {
		return nil, ErrInvalidToken
	}
	return record, nil
}

// Rotate validates the old token and atomically replaces it: the old record is
// revoked with its successor linked, and a new Active token is issued to the
// same owner. Concurrent rotations of the same token resolve to exactly one
// winner; the loser fails closed with ErrInvalidToken and the caller must
// force full re-authentication.
func (m *Manager) Rotate(ctx context.Context, token, ip string) (*RefreshToken, error) {
	old, err := m.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	replacement, err := m.create(ctx, old.UserID, old.APITokenID, ip)
	if err != nil {
		return nil, err
	}

	ok, err := m.repo.MarkRotated(ctx, old.Token, replacement.Token, m.nowTime())
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Rotate] repo.MarkRotated")
	}
	if !ok {
		// Lost the race: someone else rotated (or revoked) between Validate
		// and the conditional update. Withdraw our replacement and fail closed.
		if _, revokeErr := m.repo.MarkRevoked(ctx, replacement.Token, m.nowTime()); revokeErr != nil {
			m.logger.Error().Err(revokeErr).Msg("failed to revoke orphaned replacement token")
		}
		m.logReuse(old)
		return nil, ErrInvalidToken
	}
	return replacement, nil
}

// Revoke terminally revokes a token (logout). Revoking an already-dead or
// unknown token is not an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	_, err := m.repo.MarkRevoked(ctx, token, m.nowTime())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "[Manager.Revoke] repo.MarkRevoked")
	}
	return nil
}

// RevokeAllForUser kills every live interactive session for the user.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	n, err := m.repo.RevokeAllForUser(ctx, userID, "", m.nowTime())
	if err != nil {
		return 0, errors.Wrap(err, "[Manager.RevokeAllForUser] repo.RevokeAllForUser")
	}
	return n, nil
}

// RevokeChain kills the live tail of an API token's chain.
func (m *Manager) RevokeChain(ctx context.Context, userID, apiTokenID string) (int, error) {
	n, err := m.repo.RevokeAllForUser(ctx, userID, apiTokenID, m.nowTime())
	if err != nil {
		return 0, errors.Wrap(err, "[Manager.RevokeChain] repo.RevokeAllForUser")
	}
	return n, nil
}

// logReuse records presentation of an already-rotated token. Operational
// telemetry only: the caller sees the same generic failure as plain expiry.
func (m *Manager) logReuse(record *RefreshToken) {
	m.logger.Warn().
		Str("user_id", record.UserID).
		Str("token_prefix", tokenPrefix(record.Token)).
		Str("created_by_ip", record.CreatedByIP).
		Bool("api_token_chain", record.APITokenID != "").
		Msg("refresh token reuse detected: rotated token presented again")
}

// tokenPrefix returns a loggable fragment of a token. Full values never reach
// the logs.
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
