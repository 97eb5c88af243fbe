package auth

import "errors"

// The client-visible failure taxonomy. Anything finer grained (which factor
// failed, expired vs reused refresh token) stays in internal logs so the API
// surface cannot be used as an oracle.
var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrTwoFactorRequired        = errors.New("two-factor authentication required")
	ErrInvalidTwoFactorCode     = errors.New("invalid two-factor code")
	ErrTwoFactorNotEnabled      = errors.New("two-factor authentication not enabled")
	ErrTwoFactorAlreadyEnabled  = errors.New("two-factor authentication already enabled")
	ErrTwoFactorSetupNotStarted = errors.New("two-factor setup not started")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
	ErrRateLimited              = errors.New("too many attempts")
)
