package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gigledger/gigledger/mfa"
	"github.com/gigledger/gigledger/token"
	"github.com/gigledger/gigledger/token/refresh"
	"github.com/gigledger/gigledger/users"
)

// AttemptLimiter bounds repeated credential and 2FA attempts per identity.
// Required surrounding control: the 6-digit TOTP and backup-code space is
// brute-forceable without it.
type AttemptLimiter interface {
	Check(ctx context.Context, kind, identity, ip string) error
	RecordFailure(ctx context.Context, kind, identity, ip string) error
	Reset(ctx context.Context, kind, identity, ip string) error
}

// Limiter kinds used by the orchestrator.
const (
	LimitLogin     = "login"
	LimitTwoFactor = "2fa"
)

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Users users.UserRepo
}

// Service composes the credential, TOTP, backup-code, and token components
// into the public login and 2FA-setup state machines.
type Service struct {
	repos      Repos
	verifier   users.CredentialVerifier
	vault      *mfa.Vault
	sessions   *refresh.Manager // interactive-login refresh chains
	issuer     *token.Issuer
	limiter    AttemptLimiter // optional
	totpIssuer string         // label shown in authenticator apps
	logger     zerolog.Logger
	nowTime    func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = now
	}
}

// WithAttemptLimiter attaches a rate limiter to the login and 2FA paths.
func WithAttemptLimiter(limiter AttemptLimiter) ServiceOption {
	return func(s *Service) {
		s.limiter = limiter
	}
}

// NewService initializes the orchestrator with required dependencies.
func NewService(
	repos Repos,
	verifier users.CredentialVerifier,
	vault *mfa.Vault,
	sessions *refresh.Manager,
	issuer *token.Issuer,
	totpIssuer string,
	logger zerolog.Logger,
	options ...ServiceOption,
) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[auth.NewService] Users repo is required")
	}
	if verifier == nil {
		return nil, errors.New("[auth.NewService] credential verifier is required")
	}
	if vault == nil {
		return nil, errors.New("[auth.NewService] backup code vault is required")
	}
	if sessions == nil {
		return nil, errors.New("[auth.NewService] refresh manager is required")
	}
	if issuer == nil {
		return nil, errors.New("[auth.NewService] token issuer is required")
	}

	s := &Service{
		repos:      repos,
		verifier:   verifier,
		vault:      vault,
		sessions:   sessions,
		issuer:     issuer,
		totpIssuer: totpIssuer,
		logger:     logger,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// TwoFactorSetup is the one-time response to starting 2FA enrolment. The
// secret and backup codes are shown once and never again.
type TwoFactorSetup struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

// LoginRequest carries the full credential set for a password+2FA login.
// Exactly one of TotpCode and BackupCode may be populated.
type LoginRequest struct {
	Email      string
	Password   string
	TotpCode   string
	BackupCode string
	IP         string
}

// TokenPair is the successful outcome of login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Setup2FA starts (or restarts) enrolment: a fresh secret and a fresh backup
// code set, with the record left unverified. Restarting while unverified
// replaces the pending secret; a verified enrolment must be disabled first.
func (s *Service) Setup2FA(ctx context.Context, userID, recoveryEmail string) (*TwoFactorSetup, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Setup2FA] Users.GetByID")
	}
	if user.TwoFactorReady() {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	key, err := mfa.GenerateSecret(s.totpIssuer, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Setup2FA] generate secret")
	}

	record := &users.TwoFactorAuth{
		SecretKey:     key.Secret(),
		RecoveryEmail: recoveryEmail,
		IsVerified:    false,
		CreatedAt:     s.nowTime(),
	}
	if err := s.repos.Users.SetTwoFactor(ctx, userID, record, true); err != nil {
		return nil, errors.Wrap(err, "[Service.Setup2FA] Users.SetTwoFactor")
	}

	codes, err := s.vault.Issue(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Setup2FA] issue backup codes")
	}

	s.logger.Info().Str("user_id", userID).Msg("two-factor setup started")
	return &TwoFactorSetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     codes,
	}, nil
}

// Verify2FA confirms the pending enrolment and moves it from
// PendingVerification to Enabled. Either a current TOTP code or one of the
// just-issued backup codes is accepted, matching setup screens that offer
// both; a spent backup code stays spent.
func (s *Service) Verify2FA(ctx context.Context, userID, code string) error {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "[Service.Verify2FA] Users.GetByID")
	}
	if user.TwoFactor == nil || user.TwoFactor.SecretKey == "" {
		return ErrTwoFactorSetupNotStarted
	}
	if user.TwoFactor.IsVerified {
		return ErrTwoFactorAlreadyEnabled
	}

	totpCode, backupCode := splitFactor(code)
	if err := s.checkSecondFactor(ctx, user, totpCode, backupCode); err != nil {
		return err
	}

	record := *user.TwoFactor
	record.IsVerified = true
	verifiedAt := s.nowTime()
	record.VerifiedAt = &verifiedAt
	if err := s.repos.Users.SetTwoFactor(ctx, userID, &record, true); err != nil {
		return errors.Wrap(err, "[Service.Verify2FA] Users.SetTwoFactor")
	}

	s.logger.Info().Str("user_id", userID).Msg("two-factor enrolment verified")
	return nil
}

// Disable2FA tears an Enabled enrolment down to NotConfigured. It demands a
// currently valid TOTP code and clears both the secret and the backup codes.
func (s *Service) Disable2FA(ctx context.Context, userID, totpCode string) error {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "[Service.Disable2FA] Users.GetByID")
	}
	if !user.TwoFactorReady() {
		return ErrTwoFactorNotEnabled
	}

	if err := s.checkSecondFactor(ctx, user, totpCode, ""); err != nil {
		return err
	}

	if err := s.repos.Users.SetTwoFactor(ctx, userID, nil, false); err != nil {
		return errors.Wrap(err, "[Service.Disable2FA] Users.SetTwoFactor")
	}
	if err := s.vault.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "[Service.Disable2FA] clear backup codes")
	}

	s.logger.Info().Str("user_id", userID).Msg("two-factor authentication disabled")
	return nil
}

// RegenerateBackupCodes destructively replaces the user's backup code set.
// Requires a currently valid TOTP code; old codes are dead from here on.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID, totpCode string) ([]string, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.RegenerateBackupCodes] Users.GetByID")
	}
	if !user.TwoFactorReady() {
		return nil, ErrTwoFactorNotEnabled
	}

	if err := s.checkSecondFactor(ctx, user, totpCode, ""); err != nil {
		return nil, err
	}

	codes, err := s.vault.Issue(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.RegenerateBackupCodes] issue")
	}

	s.logger.Info().Str("user_id", userID).Msg("backup codes regenerated")
	return codes, nil
}

// BackupCodesRemaining reports unused codes for status display.
func (s *Service) BackupCodesRemaining(ctx context.Context, userID string) (int, error) {
	return s.vault.RemainingCount(ctx, userID)
}

// Login runs the password+2FA state machine:
//
//  1. password check via the external credential verifier - generic failure,
//     identical for unknown email and wrong password;
//  2. 2FA gating - a user without a verified enrolment gets
//     ErrTwoFactorRequired and no tokens, never a silent success;
//  3. exactly one second factor, chosen by which field is populated;
//  4. token pair issuance and last-login bookkeeping.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, LimitLogin, req.Email, req.IP); err != nil {
			return nil, ErrRateLimited
		}
	}

	user, err := s.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] credential verifier")
	}
	if user == nil {
		s.recordFailure(ctx, LimitLogin, req.Email, req.IP)
		return nil, ErrInvalidCredentials
	}

	if !user.TwoFactorReady() {
		// Setup-in-progress counts as not enabled for login gating.
		return nil, ErrTwoFactorRequired
	}

	if err := s.checkSecondFactor(ctx, user, req.TotpCode, req.BackupCode); err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, user, req.IP)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Users.SetLastLogin(ctx, user.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
	}
	s.resetLimits(ctx, req.Email, user.ID, req.IP)

	s.logger.Info().Str("user_id", user.ID).Str("ip", req.IP).Msg("login succeeded")
	return pair, nil
}

// Refresh rotates the presented refresh token and mints a new access token.
// Expired, revoked, and reused tokens all fail with ErrInvalidRefreshToken;
// the caller must force full re-authentication. Tokens backing an API-token
// chain are rejected before rotation: they refresh through the API token
// surface and must never be traded up to a full-scope interactive token.
func (s *Service) Refresh(ctx context.Context, refreshToken, ip string) (*TokenPair, error) {
	current, err := s.sessions.Validate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrInvalidToken) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, errors.Wrap(err, "[Service.Refresh] validate")
	}
	if current.APITokenID != "" {
		s.logger.Warn().
			Str("user_id", current.UserID).
			Str("api_token_id", current.APITokenID).
			Msg("api token refresh chain presented on interactive refresh")
		return nil, ErrInvalidRefreshToken
	}

	rotated, err := s.sessions.Rotate(ctx, refreshToken, ip)
	if err != nil {
		if errors.Is(err, refresh.ErrInvalidToken) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, errors.Wrap(err, "[Service.Refresh] rotate")
	}

	user, err := s.repos.Users.GetByID(ctx, rotated.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] Users.GetByID")
	}

	signed, claims, err := s.issuer.Issue(user, token.AllScopes())
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] issue access token")
	}

	return &TokenPair{
		AccessToken:      signed,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshToken:     rotated.Token,
		RefreshExpiresAt: rotated.ExpiresAt,
	}, nil
}

// Logout revokes the presented refresh token. Unknown and already-dead tokens
// are ignored: logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.Revoke(ctx, refreshToken)
}

// RevokeAllSessions kills every live interactive session for the user.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) (int, error) {
	return s.sessions.RevokeAllForUser(ctx, userID)
}

// checkSecondFactor verifies exactly one of a TOTP code or a backup code
// against the user's enrolment. Both populated, neither populated, and wrong
// code all collapse to ErrInvalidTwoFactorCode.
func (s *Service) checkSecondFactor(ctx context.Context, user *users.User, totpCode, backupCode string) error {
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, LimitTwoFactor, user.ID, ""); err != nil {
			return ErrRateLimited
		}
	}

	var ok bool
	switch {
	case totpCode != "" && backupCode != "":
		ok = false
	case totpCode != "":
		ok = mfa.VerifyCode(user.TwoFactor.SecretKey, totpCode, s.nowTime())
	case backupCode != "":
		var err error
		ok, err = s.vault.Consume(ctx, user.ID, backupCode)
		if err != nil {
			return errors.Wrap(err, "[Service.checkSecondFactor] consume backup code")
		}
	default:
		ok = false
	}

	if !ok {
		s.recordFailure(ctx, LimitTwoFactor, user.ID, "")
		s.logger.Warn().Str("user_id", user.ID).Msg("second factor verification failed")
		return ErrInvalidTwoFactorCode
	}
	return nil
}

// splitFactor classifies a bare code by shape: six digits is a TOTP code,
// anything else is treated as a backup code.
func splitFactor(code string) (totpCode, backupCode string) {
	if len(code) == 6 {
		digits := true
		for _, r := range code {
			if r < '0' || r > '9' {
				digits = false
				break
			}
		}
		if digits {
			return code, ""
		}
	}
	return "", code
}

func (s *Service) issuePair(ctx context.Context, user *users.User, ip string) (*TokenPair, error) {
	signed, claims, err := s.issuer.Issue(user, token.AllScopes())
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issuePair] issue access token")
	}

	session, err := s.sessions.Create(ctx, user.ID, ip)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issuePair] create refresh token")
	}

	return &TokenPair{
		AccessToken:      signed,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshToken:     session.Token,
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, kind, identity, ip string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, kind, identity, ip); err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("failed to record limiter failure")
	}
}

func (s *Service) resetLimits(ctx context.Context, email, userID, ip string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, LimitLogin, email, ip); err != nil {
		s.logger.Error().Err(err).Msg("failed to reset login limiter")
	}
	if err := s.limiter.Reset(ctx, LimitTwoFactor, userID, ""); err != nil {
		s.logger.Error().Err(err).Msg("failed to reset 2fa limiter")
	}
}
