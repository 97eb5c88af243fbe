package users

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type memoryUserRepo struct {
	UserRepo
	byEmail map[string]*User
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

// failingUserRepo surfaces a storage fault from the lookup. The embedded
// interface is nil; only GetByEmail is reachable from the verifier.
type failingUserRepo struct {
	UserRepo
	err error
}

func (r *failingUserRepo) GetByEmail(context.Context, string) (*User, error) {
	return nil, r.err
}

func setupVerifier(t *testing.T) *RepoVerifier {
	t.Helper()
	hash, err := HashPassword("Sup3rSecret")
	require.NoError(t, err)
	repo := &memoryUserRepo{byEmail: map[string]*User{
		"rider@example.com": {ID: "user-1", Email: "rider@example.com", PasswordHash: hash},
	}}
	return NewRepoVerifier(repo)
}

func TestVerifyMatchingCredentials(t *testing.T) {
	v := setupVerifier(t)

	user, err := v.Verify(context.Background(), "rider@example.com", "Sup3rSecret")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, "user-1", user.ID)
}

func TestVerifyWrongPassword(t *testing.T) {
	v := setupVerifier(t)

	user, err := v.Verify(context.Background(), "rider@example.com", "wrong")
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestVerifyUnknownEmail(t *testing.T) {
	v := setupVerifier(t)

	user, err := v.Verify(context.Background(), "nobody@example.com", "Sup3rSecret")
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestVerifyPropagatesRepoError(t *testing.T) {
	boom := errors.New("connection reset")
	v := NewRepoVerifier(&failingUserRepo{err: boom})

	_, err := v.Verify(context.Background(), "rider@example.com", "Sup3rSecret")
	require.ErrorIs(t, err, boom)
}

// The unknown-email branch must burn a real bcrypt comparison so it is not
// measurably cheaper than a wrong password against a stored hash.
func TestDummyHashIsRealBcrypt(t *testing.T) {
	require.True(t, CheckPasswordHash("credential-timing-pad", dummyHash))
	require.False(t, CheckPasswordHash("anything else", dummyHash))
}
