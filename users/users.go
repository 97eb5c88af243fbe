package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// TwoFactorAuth holds a user's TOTP enrolment. It is created by the 2FA setup
// flow and mutated only by setup, verify, and disable.
//
// IsVerified stays false until the user has confirmed possession of the secret
// with a first correct code. A user with TwoFactorEnabled set but an unverified
// record is setup-in-progress and must not pass login gating.
type TwoFactorAuth struct {
	SecretKey     string     `json:"-"`                        // base32 TOTP seed - never serialize
	RecoveryEmail string     `json:"recovery_email,omitempty"` // optional out-of-band contact
	IsVerified    bool       `json:"is_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Email        string    `json:"email,omitempty"`       // User's email address
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	FirstName    string    `json:"first_name,omitempty"`  // First name of the user
	LastName     string    `json:"last_name,omitempty"`   // Last name of the user
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user logged in

	TwoFactorEnabled bool           `json:"two_factor_enabled"` // True from setup onwards, including setup-in-progress
	TwoFactor        *TwoFactorAuth `json:"two_factor,omitempty"`
}

// TwoFactorReady reports whether the user has a fully verified 2FA enrolment
// usable for login gating.
func (u *User) TwoFactorReady() bool {
	return u.TwoFactorEnabled && u.TwoFactor != nil && u.TwoFactor.IsVerified && u.TwoFactor.SecretKey != ""
}

// TwoFactorPending reports whether setup has started but possession of the
// secret has not yet been confirmed.
func (u *User) TwoFactorPending() bool {
	return u.TwoFactorEnabled && u.TwoFactor != nil && !u.TwoFactor.IsVerified
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
