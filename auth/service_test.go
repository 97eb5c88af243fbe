package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/gigledger/gigledger/auth"
	"github.com/gigledger/gigledger/mfa"
	mfarepofake "github.com/gigledger/gigledger/mfa/repofake"
	"github.com/gigledger/gigledger/token"
	"github.com/gigledger/gigledger/token/refresh"
	refreshrepofake "github.com/gigledger/gigledger/token/refresh/repofake"
	"github.com/gigledger/gigledger/users"
	userrepofake "github.com/gigledger/gigledger/users/repofake"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "rider@example.com"
	testPassword = "Sup3rSecret"
	testIP       = "203.0.113.10"
)

type fixture struct {
	userRepo *userrepofake.FakeUserRepo
	issuer   *token.Issuer
	service  *auth.Service
	sessions *refresh.Manager
	now      time.Time
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		userRepo: userrepofake.NewFakeUserRepo(),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }

	vault, err := mfa.NewVault(mfarepofake.NewFakeBackupCodeRepo(), zerolog.Nop(),
		mfa.WithBcryptCost(bcrypt.MinCost), mfa.WithVaultNowTime(nowFunc))
	require.NoError(t, err)

	sessions, err := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), zerolog.Nop(),
		refresh.WithNowTime(nowFunc))
	require.NoError(t, err)
	f.sessions = sessions

	issuer, err := token.NewIssuer(token.NewHMACSigner("test-secret"), "com.gigledger", "api",
		token.WithNowTime(nowFunc))
	require.NoError(t, err)
	f.issuer = issuer

	service, err := auth.NewService(
		auth.Repos{Users: f.userRepo},
		users.NewRepoVerifier(f.userRepo),
		vault,
		sessions,
		issuer,
		"GigLedger",
		zerolog.Nop(),
		auth.WithNowTime(nowFunc),
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *fixture) createUser(t *testing.T) string {
	t.Helper()

	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)
	user := &users.User{
		ID:           uuid.New().String(),
		Email:        testEmail,
		PasswordHash: hash,
		DateJoined:   f.now,
	}
	require.NoError(t, f.userRepo.Upsert(context.Background(), user))
	return user.ID
}

// enrollUser walks the full setup -> verify state machine and returns the
// TOTP secret and issued backup codes.
func (f *fixture) enrollUser(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := f.service.Setup2FA(ctx, userID, "backup@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.ProvisioningURI, "otpauth://totp/")
	require.Len(t, setup.BackupCodes, mfa.DefaultBackupCodeCount)

	code, err := mfa.CodeAt(setup.Secret, f.now)
	require.NoError(t, err)
	require.NoError(t, f.service.Verify2FA(ctx, userID, code))
	return setup.Secret, setup.BackupCodes
}

func (f *fixture) totpNow(t *testing.T, secret string) string {
	t.Helper()
	code, err := mfa.CodeAt(secret, f.now)
	require.NoError(t, err)
	return code
}

func TestSetupLeavesEnrolmentPending(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)

	_, err := f.service.Setup2FA(ctx, userID, "")
	require.NoError(t, err)

	user, err := f.userRepo.GetByID(ctx, userID)
	require.NoError(t, err)
	require.True(t, user.TwoFactorPending())
	require.False(t, user.TwoFactorReady())

	// Setup-in-progress must not pass login gating.
	_, err = f.service.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPassword, IP: testIP})
	require.ErrorIs(t, err, auth.ErrTwoFactorRequired)
}

func TestVerifyTransitionsPendingToEnabled(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)

	f.enrollUser(t, userID)

	user, err := f.userRepo.GetByID(ctx, userID)
	require.NoError(t, err)
	require.True(t, user.TwoFactorReady())
	require.NotNil(t, user.TwoFactor.VerifiedAt)
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)

	_, err := f.service.Setup2FA(ctx, userID, "")
	require.NoError(t, err)

	err = f.service.Verify2FA(ctx, userID, "000000")
	require.ErrorIs(t, err, auth.ErrInvalidTwoFactorCode)

	user, err := f.userRepo.GetByID(ctx, userID)
	require.NoError(t, err)
	require.False(t, user.TwoFactorReady())
}

func TestVerifyAcceptsBackupCode(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)

	setup, err := f.service.Setup2FA(ctx, userID, "")
	require.NoError(t, err)

	require.NoError(t, f.service.Verify2FA(ctx, userID, setup.BackupCodes[0]))

	user, err := f.userRepo.GetByID(ctx, userID)
	require.NoError(t, err)
	require.True(t, user.TwoFactorReady())

	// The code used for verification is spent.
	_, err = f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: testPassword, BackupCode: setup.BackupCodes[0], IP: testIP,
	})
	require.ErrorIs(t, err, auth.ErrInvalidTwoFactorCode)

	remaining, err := f.service.BackupCodesRemaining(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, mfa.DefaultBackupCodeCount-1, remaining)
}

func TestVerifyWithoutSetup(t *testing.T) {
	f := setupFixture(t)
	userID := f.createUser(t)

	err := f.service.Verify2FA(context.Background(), userID, "123456")
	require.ErrorIs(t, err, auth.ErrTwoFactorSetupNotStarted)
}

func TestLoginWithTotp(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)
	secret, _ := f.enrollUser(t, userID)

	pair, err := f.service.Login(ctx, auth.LoginRequest{
		Email:    testEmail,
		Password: testPassword,
		TotpCode: f.totpNow(t, secret),
		IP:       testIP,
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, f.now.Add(token.DefaultAccessTokenExpiry), pair.AccessExpiresAt)
	require.Equal(t, f.now.Add(refresh.DefaultExpiry), pair.RefreshExpiresAt)

	claims := f.issuer.Validate(pair.AccessToken)
	require.NotNil(t, claims)
	require.Equal(t, userID, claims.UserID())
	require.Equal(t, testEmail, claims.Email)
	require.ElementsMatch(t, token.AllScopes(), claims.Scopes)

	user, err := f.userRepo.GetByID(ctx, userID)
	require.NoError(t, err)
	require.False(t, user.LastLogin.IsZero())
}

func TestLoginWithBackupCode(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)
	_, codes := f.enrollUser(t, userID)

	pair, err := f.service.Login(ctx, auth.LoginRequest{
		Email:      testEmail,
		Password:   testPassword,
		BackupCode: codes[0],
		IP:         testIP,
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	// The spent code must not work a second time.
	_, err = f.service.Login(ctx, auth.LoginRequest{
		Email:      testEmail,
		Password:   testPassword,
		BackupCode: codes[0],
		IP:         testIP,
	})
	require.ErrorIs(t, err, auth.ErrInvalidTwoFactorCode)
}

func TestLoginRejectsBothFactorsPopulated(t *testing.T) {
	f := setupFixture(t)
	userID := f.createUser(t)
	secret, codes := f.enrollUser(t, userID)

	_, err := f.service.Login(context.Background(), auth.LoginRequest{
		Email:      testEmail,
		Password:   testPassword,
		TotpCode:   f.totpNow(t, secret),
		BackupCode: codes[0],
		IP:         testIP,
	})
	require.ErrorIs(t, err, auth.ErrInvalidTwoFactorCode)
}

func TestLoginGenericFailures(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)
	secret, _ := f.enrollUser(t, userID)

	// Wrong password and unknown email produce the same error: no account
	// enumeration through the failure shape.
	_, wrongPassword := f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: "WrongPass1", TotpCode: f.totpNow(t, secret), IP: testIP,
	})
	_, unknownEmail := f.service.Login(ctx, auth.LoginRequest{
		Email: "nobody@example.com", Password: testPassword, TotpCode: f.totpNow(t, secret), IP: testIP,
	})
	require.ErrorIs(t, wrongPassword, auth.ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, auth.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLoginWithoutSecondFactor(t *testing.T) {
	f := setupFixture(t)
	userID := f.createUser(t)
	f.enrollUser(t, userID)

	_, err := f.service.Login(context.Background(), auth.LoginRequest{
		Email: testEmail, Password: testPassword, IP: testIP,
	})
	require.ErrorIs(t, err, auth.ErrInvalidTwoFactorCode)
}

func TestRefreshRotatesPair(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)
	secret, _ := f.enrollUser(t, userID)

	pair, err := f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: testPassword, TotpCode: f.totpNow(t, secret), IP: testIP,
	})
	require.NoError(t, err)

	refreshed, err := f.service.Refresh(ctx, pair.RefreshToken, testIP)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, refreshed.RefreshToken)
	require.NotNil(t, f.issuer.Validate(refreshed.AccessToken))

	// The stolen-old-token scenario: the pre-rotation token fails with the
	// generic error, and no new pair is issued for it.
	_, err = f.service.Refresh(ctx, pair.RefreshToken, testIP)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestRefreshUnknownToken(t *testing.T) {
	f := setupFixture(t)

	_, err := f.service.Refresh(context.Background(), "never-issued", testIP)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestRefreshRejectsAPITokenChain(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)

	// A scoped API token's refresh chain lives in the same store as
	// interactive sessions. Trading one in here would mint a full-scope
	// interactive access token, so it must fail before rotation.
	chain, err := f.sessions.CreateForAPIToken(ctx, userID, "api-token-1", testIP)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, chain.Token, testIP)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	// The chain was not consumed: it still rotates on the API token path.
	rotated, err := f.sessions.Rotate(ctx, chain.Token, testIP)
	require.NoError(t, err)
	require.Equal(t, "api-token-1", rotated.APITokenID)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)
	secret, _ := f.enrollUser(t, userID)

	pair, err := f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: testPassword, TotpCode: f.totpNow(t, secret), IP: testIP,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.service.Logout(ctx, pair.RefreshToken))

	_, err = f.service.Refresh(ctx, pair.RefreshToken, testIP)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestDisableClearsEnrolment(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)
	secret, codes := f.enrollUser(t, userID)

	require.NoError(t, f.service.Disable2FA(ctx, userID, f.totpNow(t, secret)))

	user, err := f.userRepo.GetByID(ctx, userID)
	require.NoError(t, err)
	require.False(t, user.TwoFactorEnabled)
	require.Nil(t, user.TwoFactor)

	remaining, err := f.service.BackupCodesRemaining(ctx, userID)
	require.NoError(t, err)
	require.Zero(t, remaining)

	// Old backup codes are gone along with the enrolment.
	_, err = f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: testPassword, BackupCode: codes[0], IP: testIP,
	})
	require.ErrorIs(t, err, auth.ErrTwoFactorRequired)
}

func TestDisableRequiresValidCode(t *testing.T) {
	f := setupFixture(t)
	userID := f.createUser(t)
	f.enrollUser(t, userID)

	err := f.service.Disable2FA(context.Background(), userID, "000000")
	require.ErrorIs(t, err, auth.ErrInvalidTwoFactorCode)
}

func TestRegenerateBackupCodesInvalidatesOldSet(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)
	secret, oldCodes := f.enrollUser(t, userID)

	newCodes, err := f.service.RegenerateBackupCodes(ctx, userID, f.totpNow(t, secret))
	require.NoError(t, err)
	require.Len(t, newCodes, mfa.DefaultBackupCodeCount)

	_, err = f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: testPassword, BackupCode: oldCodes[0], IP: testIP,
	})
	require.ErrorIs(t, err, auth.ErrInvalidTwoFactorCode)

	pair, err := f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: testPassword, BackupCode: newCodes[0], IP: testIP,
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
}

func TestSetupRejectedWhileEnabled(t *testing.T) {
	f := setupFixture(t)
	userID := f.createUser(t)
	f.enrollUser(t, userID)

	_, err := f.service.Setup2FA(context.Background(), userID, "")
	require.ErrorIs(t, err, auth.ErrTwoFactorAlreadyEnabled)
}

func TestRevokeAllSessions(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	userID := f.createUser(t)
	secret, _ := f.enrollUser(t, userID)

	first, err := f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: testPassword, TotpCode: f.totpNow(t, secret), IP: testIP,
	})
	require.NoError(t, err)
	second, err := f.service.Login(ctx, auth.LoginRequest{
		Email: testEmail, Password: testPassword, TotpCode: f.totpNow(t, secret), IP: testIP,
	})
	require.NoError(t, err)

	revoked, err := f.service.RevokeAllSessions(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 2, revoked)

	_, err = f.service.Refresh(ctx, first.RefreshToken, testIP)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
	_, err = f.service.Refresh(ctx, second.RefreshToken, testIP)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}
