package apitoken_test

import (
	"context"
	"testing"
	"time"

	"github.com/gigledger/gigledger/token"
	"github.com/gigledger/gigledger/token/apitoken"
	apitokenrepofake "github.com/gigledger/gigledger/token/apitoken/repofake"
	"github.com/gigledger/gigledger/token/refresh"
	refreshrepofake "github.com/gigledger/gigledger/token/refresh/repofake"
	"github.com/gigledger/gigledger/users"
	userrepofake "github.com/gigledger/gigledger/users/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testUserID = "user-1"
	testEmail  = "rider@example.com"
	testIP     = "203.0.113.10"
)

type serviceFixture struct {
	service  *apitoken.Service
	issuer   *token.Issuer
	sessions *refresh.Manager
	now      time.Time
}

func setupService(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	nowFunc := func() time.Time { return f.now }

	issuer, err := token.NewIssuer(token.NewHMACSigner("test-secret"), "com.gigledger", "api", token.WithNowTime(nowFunc))
	require.NoError(t, err)
	f.issuer = issuer

	sessions, err := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), zerolog.Nop(), refresh.WithNowTime(nowFunc))
	require.NoError(t, err)
	f.sessions = sessions

	userRepo := userrepofake.NewFakeUserRepo()
	require.NoError(t, userRepo.Upsert(context.Background(), &users.User{ID: testUserID, Email: testEmail}))

	service, err := apitoken.NewService(apitokenrepofake.NewFakeAPITokenRepo(), issuer, sessions, userRepo, zerolog.Nop(), apitoken.WithNowTime(nowFunc))
	require.NoError(t, err)
	f.service = service
	return f
}

func TestGenerateAndValidate(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	scopes := []string{token.ScopeReadRoutes}

	generated, err := f.service.Generate(ctx, testUserID, testEmail, "ci export", scopes, 30*24*time.Hour, false, testIP)
	require.NoError(t, err)
	require.NotEmpty(t, generated.AccessToken)
	require.Empty(t, generated.RefreshToken)
	require.Equal(t, scopes, generated.Token.Scopes)

	principal := f.service.Validate(ctx, generated.AccessToken)
	require.NotNil(t, principal)
	require.Equal(t, testUserID, principal.UserID)
	require.Equal(t, scopes, principal.Scopes)
	require.Equal(t, generated.Token.ID, principal.TokenID)

	// The read-only principal must not carry scopes it was never granted.
	require.False(t, token.HasScope(principal.Scopes, token.ScopeWriteRoutes))
}

func TestGenerateRejectsUnknownScopes(t *testing.T) {
	f := setupService(t)

	_, err := f.service.Generate(context.Background(), testUserID, testEmail, "bad", []string{"admin:everything"}, 0, false, testIP)
	require.ErrorIs(t, err, token.ErrInvalidScope)

	_, err = f.service.Generate(context.Background(), testUserID, testEmail, "empty", nil, 0, false, testIP)
	require.ErrorIs(t, err, token.ErrInvalidScope)
}

func TestValidateTracksUsage(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	generated, err := f.service.Generate(ctx, testUserID, testEmail, "tracker", []string{token.ScopeReadDashboard}, 0, false, testIP)
	require.NoError(t, err)

	require.NotNil(t, f.service.Validate(ctx, generated.AccessToken))
	require.NotNil(t, f.service.Validate(ctx, generated.AccessToken))

	tokens, err := f.service.List(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.EqualValues(t, 2, tokens[0].UsageCount)
	require.NotNil(t, tokens[0].LastUsedAt)
}

func TestValidateRejectsInteractiveAccessToken(t *testing.T) {
	f := setupService(t)

	// A session access token is signed by the same issuer but carries
	// token_use=access; the API validator must not accept it.
	signed, _, err := f.issuer.Issue(&users.User{ID: testUserID, Email: testEmail}, token.AllScopes())
	require.NoError(t, err)

	require.Nil(t, f.service.Validate(context.Background(), signed))
}

func TestRevokeIsIdempotentAndMonotonic(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	generated, err := f.service.Generate(ctx, testUserID, testEmail, "to revoke", []string{token.ScopeReadRoutes}, 0, true, testIP)
	require.NoError(t, err)

	require.NoError(t, f.service.Revoke(ctx, generated.Token.ID, testUserID))

	// Second revoke reports not-found, not an error condition.
	err = f.service.Revoke(ctx, generated.Token.ID, testUserID)
	require.ErrorIs(t, err, apitoken.ErrTokenNotFound)

	// Validation fails once revoked, and the refresh chain is dead too.
	require.Nil(t, f.service.Validate(ctx, generated.AccessToken))
	_, err = f.service.Refresh(ctx, generated.RefreshToken, testIP)
	require.ErrorIs(t, err, refresh.ErrInvalidToken)
}

func TestRevokeUnknownToken(t *testing.T) {
	f := setupService(t)

	err := f.service.Revoke(context.Background(), "never-issued", testUserID)
	require.ErrorIs(t, err, apitoken.ErrTokenNotFound)
}

func TestRefreshRotatesChain(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	generated, err := f.service.Generate(ctx, testUserID, testEmail, "refreshable", []string{token.ScopeReadRoutes}, 0, true, testIP)
	require.NoError(t, err)
	require.NotEmpty(t, generated.RefreshToken)

	refreshed, err := f.service.Refresh(ctx, generated.RefreshToken, testIP)
	require.NoError(t, err)
	require.NotEqual(t, generated.RefreshToken, refreshed.RefreshToken)
	require.NotNil(t, f.service.Validate(ctx, refreshed.AccessToken))

	// The spent refresh token fails closed on replay.
	_, err = f.service.Refresh(ctx, generated.RefreshToken, testIP)
	require.ErrorIs(t, err, refresh.ErrInvalidToken)
}

func TestRefreshRejectsInteractiveSessionToken(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	// An interactive session shares the refresh manager but carries no API
	// token ID; it must be refused here without consuming the session.
	session, err := f.sessions.Create(ctx, testUserID, testIP)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, session.Token, testIP)
	require.ErrorIs(t, err, refresh.ErrInvalidToken)

	// The session is untouched: it still rotates on the interactive path.
	rotated, err := f.sessions.Rotate(ctx, session.Token, testIP)
	require.NoError(t, err)
	require.NotEqual(t, session.Token, rotated.Token)
}

func TestRefreshDerivesEmailFromStoredUser(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	generated, err := f.service.Generate(ctx, testUserID, testEmail, "emailed", []string{token.ScopeReadRoutes}, 0, true, testIP)
	require.NoError(t, err)

	refreshed, err := f.service.Refresh(ctx, generated.RefreshToken, testIP)
	require.NoError(t, err)

	principal := f.service.Validate(ctx, refreshed.AccessToken)
	require.NotNil(t, principal)
	require.Equal(t, testEmail, principal.Email)
}

func TestExpiredTokenFailsValidation(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	generated, err := f.service.Generate(ctx, testUserID, testEmail, "short lived", []string{token.ScopeReadRoutes}, time.Hour, false, testIP)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	require.Nil(t, f.service.Validate(ctx, generated.AccessToken))
}
