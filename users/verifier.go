package users

import (
	"context"
	"errors"
)

// CredentialVerifier checks an email+password pair against stored credentials.
// A nil user with a nil error means the credentials did not match; callers must
// not distinguish unknown email from wrong password.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*User, error)
}

// RepoVerifier verifies credentials against a UserRepo using bcrypt.
type RepoVerifier struct {
	repo UserRepo
}

var _ CredentialVerifier = (*RepoVerifier)(nil)

// dummyHash is burned on the unknown-email branch so a lookup miss costs the
// same bcrypt work as a wrong password.
var dummyHash = func() string {
	hash, err := HashPassword("credential-timing-pad")
	if err != nil {
		panic(err)
	}
	return hash
}()

func NewRepoVerifier(repo UserRepo) *RepoVerifier {
	return &RepoVerifier{repo: repo}
}

func (v *RepoVerifier) Verify(ctx context.Context, email, password string) (*User, error) {
	user, err := v.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Unknown email and wrong password are indistinguishable to
			// callers, in both result and response time.
			CheckPasswordHash(password, dummyHash)
			return nil, nil
		}
		return nil, err
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}
