package refreshrepofake

import (
	"context"
	"sync"
	"time"

	"github.com/gigledger/gigledger/token/refresh"
)

var _ refresh.Repo = (*FakeRefreshTokenRepo)(nil)

// FakeRefreshTokenRepo is an in-memory refresh.Repo. The single mutex around
// each conditional update gives it the same exactly-one-winner semantics as
// the production store's conditional UPDATE.
type FakeRefreshTokenRepo struct {
	tokens map[string]*refresh.RefreshToken
	lock   sync.Mutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*refresh.RefreshToken),
	}
}

func (r *FakeRefreshTokenRepo) Insert(_ context.Context, token *refresh.RefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	copied := *token
	r.tokens[token.Token] = &copied
	return nil
}

func (r *FakeRefreshTokenRepo) Get(_ context.Context, token string) (*refresh.RefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.tokens[token]
	if !ok {
		return nil, refresh.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *FakeRefreshTokenRepo) MarkRotated(_ context.Context, token, replacedBy string, at time.Time) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.tokens[token]
	if !ok || record.Revoked() || record.Expired(at) {
		return false, nil
	}
	revokedAt := at
	record.RevokedAt = &revokedAt
	record.ReplacedBy = replacedBy
	return true, nil
}

func (r *FakeRefreshTokenRepo) MarkRevoked(_ context.Context, token string, at time.Time) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.tokens[token]
	if !ok || record.Revoked() {
		return false, nil
	}
	revokedAt := at
	record.RevokedAt = &revokedAt
	return true, nil
}

func (r *FakeRefreshTokenRepo) RevokeAllForUser(_ context.Context, userID, apiTokenID string, at time.Time) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	revoked := 0
	for _, record := range r.tokens {
		if record.UserID != userID || record.APITokenID != apiTokenID || record.Revoked() {
			continue
		}
		revokedAt := at
		record.RevokedAt = &revokedAt
		revoked++
	}
	return revoked, nil
}

func (r *FakeRefreshTokenRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	deleted := 0
	for key, record := range r.tokens {
		if record.ExpiresAt.Before(cutoff) {
			delete(r.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
