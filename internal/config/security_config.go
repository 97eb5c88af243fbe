package config

import (
	"strconv"
	"time"
)

type SecurityConfig interface {
	GetJWTSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetTOTPIssuer() string
	GetMaxAuthAttempts() int
	GetAuthAttemptWindow() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetJWTSecret returns the HMAC signing key. There is no default; config.New
// refuses to start without it.
func (Security) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Security) GetAccessTokenTTL() time.Duration {
	return getDuration("ACCESS_TOKEN_TTL", time.Hour)
}

func (Security) GetRefreshTokenTTL() time.Duration {
	return getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour)
}

// GetTOTPIssuer is the label shown in authenticator apps.
func (Security) GetTOTPIssuer() string {
	return GetEnv("TOTP_ISSUER", "GigLedger")
}

func (Security) GetMaxAuthAttempts() int {
	return getInt("MAX_AUTH_ATTEMPTS", 5)
}

func (Security) GetAuthAttemptWindow() time.Duration {
	return getDuration("AUTH_ATTEMPT_WINDOW", 15*time.Minute)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func getInt(envVar string, defaultValue int) int {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
