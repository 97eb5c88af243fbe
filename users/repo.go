package users

import "context"

// UserRepo manages persistence of user records and their two-factor enrolment.
type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, email string) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
	SetLastLogin(ctx context.Context, userID string) error

	// SetTwoFactor replaces the user's two-factor record. Passing enabled=false
	// together with a nil record clears the enrolment entirely.
	SetTwoFactor(ctx context.Context, userID string, tfa *TwoFactorAuth, enabled bool) error
}
