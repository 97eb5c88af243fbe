package mfa

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// totpSecretBytes is the raw secret length: 20 bytes = 160 bits, the
	// RFC 4226 recommended minimum.
	totpSecretBytes = 20

	// Backup codes are rendered as two 5-character groups, e.g. "a1b2c-d3e4f".
	backupCodeGroupLen = 5
	backupCodeGroups   = 2

	// DefaultBackupCodeCount is how many codes a single Issue produces.
	DefaultBackupCodeCount = 10

	opaqueTokenBytes = 32 // 256 bits of entropy
)

// backupCodeAlphabet is lowercase base32: unambiguous when read back over the
// phone, and case folding on input is a simple ToLower.
const backupCodeAlphabet = "abcdefghijklmnopqrstuvwxyz234567"

// GenerateSecret creates a fresh TOTP key for the given account. The returned
// key carries both the base32 secret and the otpauth:// provisioning URI used
// to render a QR code.
func GenerateSecret(issuer, accountName string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretBytes,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[GenerateSecret] totp.Generate")
	}
	return key, nil
}

// GenerateBackupCodes produces n single-use recovery codes from a
// cryptographically secure source. Codes are returned in cleartext exactly
// once; only hashes may be stored.
func GenerateBackupCodes(n int) ([]string, error) {
	if n <= 0 {
		n = DefaultBackupCodeCount
	}
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := newBackupCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func newBackupCode() (string, error) {
	groups := make([]string, 0, backupCodeGroups)
	raw := make([]byte, backupCodeGroupLen)
	for g := 0; g < backupCodeGroups; g++ {
		if _, err := rand.Read(raw); err != nil {
			return "", errors.Wrap(err, "[newBackupCode] rand.Read")
		}
		var sb strings.Builder
		for _, b := range raw {
			sb.WriteByte(backupCodeAlphabet[int(b)%len(backupCodeAlphabet)])
		}
		groups = append(groups, sb.String())
	}
	return strings.Join(groups, "-"), nil
}

// CanonicalizeBackupCode normalizes user input before hashing or comparison:
// surrounding whitespace and the group separator are dropped, case is folded.
func CanonicalizeBackupCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "")
}

// GenerateOpaqueToken returns a 256-bit random string suitable for use as a
// refresh token and as a store lookup key. Hex encoding keeps it free of
// structure that could leak through URL or header handling.
func GenerateOpaqueToken() (string, error) {
	raw := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "[GenerateOpaqueToken] rand.Read")
	}
	return hex.EncodeToString(raw), nil
}
