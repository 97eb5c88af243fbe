package mfa

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30 // seconds per time step
	totpSkew   = 1  // accepted steps either side of now
)

// VerifyCode checks a submitted 6-digit code against a base32 TOTP secret at
// the given instant, tolerating one time step of clock skew in either
// direction. Comparison inside the library is constant time.
//
// The check is a pure predicate: nothing is consumed or recorded. Callers own
// rate limiting of repeated attempts.
func VerifyCode(secret, code string, at time.Time) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}

	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// CodeAt generates the expected code for a secret at a point in time. Used by
// flows that need to mint a code server-side (tests, enrolment previews).
func CodeAt(secret string, at time.Time) (string, error) {
	return totp.GenerateCode(secret, at)
}
