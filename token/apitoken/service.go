package apitoken

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gigledger/gigledger/token"
	"github.com/gigledger/gigledger/token/refresh"
	"github.com/gigledger/gigledger/users"
)

// DefaultTTL applies when a generate request does not name a lifetime.
const DefaultTTL = 90 * 24 * time.Hour

// ErrTokenNotFound is returned when revoking a nonexistent or already-revoked
// token id.
var ErrTokenNotFound = errors.New("api token not found")

// Principal is the authenticated identity derived from a validated API token,
// exposing scopes for downstream authorization checks.
type Principal struct {
	UserID  string
	Email   string
	TokenID string
	Scopes  []string
}

// Generated is the one-time response to token generation. The refresh token,
// when requested, starts a rotation chain independent of interactive logins.
type Generated struct {
	Token        *APIToken
	AccessToken  string
	RefreshToken string
}

// Service issues, validates, refreshes, and revokes scoped API tokens.
type Service struct {
	repo     Repo
	issuer   *token.Issuer
	sessions *refresh.Manager
	users    users.UserRepo
	logger   zerolog.Logger
	nowTime  func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = now
	}
}

func NewService(repo Repo, issuer *token.Issuer, sessions *refresh.Manager, userRepo users.UserRepo, logger zerolog.Logger, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[apitoken.NewService] repo is required")
	}
	if issuer == nil {
		return nil, errors.New("[apitoken.NewService] issuer is required")
	}
	if sessions == nil {
		return nil, errors.New("[apitoken.NewService] refresh manager is required")
	}
	if userRepo == nil {
		return nil, errors.New("[apitoken.NewService] user repo is required")
	}

	s := &Service{
		repo:     repo,
		issuer:   issuer,
		sessions: sessions,
		users:    userRepo,
		logger:   logger,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Generate mints a new API token for the user. Scopes must come from the
// closed enumeration; unknown scopes are rejected before anything is stored.
// When withRefresh is set, the response carries an opaque refresh token
// starting the token's own rotation chain.
func (s *Service) Generate(ctx context.Context, userID, email, description string, scopes []string, ttl time.Duration, withRefresh bool, ip string) (*Generated, error) {
	if err := token.ValidateScopes(scopes); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := s.nowTime()
	record := &APIToken{
		ID:          uuid.New().String(),
		UserID:      userID,
		Description: description,
		Scopes:      append([]string(nil), scopes...),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return nil, errors.Wrap(err, "[Service.Generate] repo.Insert")
	}

	signed, _, err := s.issuer.IssueAPI(userID, email, scopes, record.ID, ttl)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Generate] issue access token")
	}

	generated := &Generated{Token: record, AccessToken: signed}
	if withRefresh {
		chain, err := s.sessions.CreateForAPIToken(ctx, userID, record.ID, ip)
		if err != nil {
			return nil, errors.Wrap(err, "[Service.Generate] create refresh chain")
		}
		generated.RefreshToken = chain.Token
	}
	return generated, nil
}

// Refresh rotates an API token's refresh token and mints a fresh signed access
// token for the remainder of the record's lifetime. Rotation discipline is the
// same as for interactive sessions: a replayed old token fails closed. An
// interactive session token is rejected before rotation, so presenting one
// here can neither kill the session nor mint an API token from it.
func (s *Service) Refresh(ctx context.Context, refreshToken, ip string) (*Generated, error) {
	current, err := s.sessions.Validate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if current.APITokenID == "" {
		s.logger.Warn().
			Str("user_id", current.UserID).
			Msg("interactive refresh token presented on api token refresh")
		return nil, refresh.ErrInvalidToken
	}

	rotated, err := s.sessions.Rotate(ctx, refreshToken, ip)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.Get(ctx, rotated.APITokenID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, refresh.ErrInvalidToken
		}
		return nil, errors.Wrap(err, "[Service.Refresh] repo.Get")
	}

	now := s.nowTime()
	if record.Revoked() || record.Expired(now) {
		return nil, refresh.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] Users.GetByID")
	}

	signed, _, err := s.issuer.IssueAPI(record.UserID, user.Email, record.Scopes, record.ID, record.ExpiresAt.Sub(now))
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] issue access token")
	}

	return &Generated{Token: record, AccessToken: signed, RefreshToken: rotated.Token}, nil
}

// Validate verifies a signed API token and consults the store for revocation
// and expiry, recording the use. Returns nil on any failure.
func (s *Service) Validate(ctx context.Context, raw string) *Principal {
	claims := s.issuer.Validate(raw)
	if claims == nil || claims.TokenUse != token.UseAPI {
		return nil
	}

	record, err := s.repo.Get(ctx, claims.ID)
	if err != nil || record == nil {
		return nil
	}

	now := s.nowTime()
	if record.Revoked() || record.Expired(now) {
		return nil
	}

	if err := s.repo.RecordUsage(ctx, record.ID, now); err != nil {
		s.logger.Error().Err(err).Str("token_id", record.ID).Msg("failed to record api token usage")
	}

	return &Principal{
		UserID:  record.UserID,
		Email:   claims.Email,
		TokenID: record.ID,
		Scopes:  record.Scopes,
	}
}

// List returns the user's API tokens, revoked and expired included, for
// management display.
func (s *Service) List(ctx context.Context, userID string) ([]*APIToken, error) {
	tokens, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.List] repo.ListByUser")
	}
	return tokens, nil
}

// Revoke marks a token revoked and kills its refresh chain. Idempotent:
// revoking an already-revoked or unknown id returns ErrTokenNotFound rather
// than failing loudly.
func (s *Service) Revoke(ctx context.Context, tokenID, userID string) error {
	ok, err := s.repo.MarkRevoked(ctx, tokenID, userID, s.nowTime())
	if err != nil {
		return errors.Wrap(err, "[Service.Revoke] repo.MarkRevoked")
	}
	if !ok {
		return ErrTokenNotFound
	}
	if _, err := s.sessions.RevokeChain(ctx, userID, tokenID); err != nil {
		return errors.Wrap(err, "[Service.Revoke] revoke refresh chain")
	}
	return nil
}
