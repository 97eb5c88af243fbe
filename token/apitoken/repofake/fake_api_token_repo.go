package apitokenrepofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gigledger/gigledger/token/apitoken"
)

var _ apitoken.Repo = (*FakeAPITokenRepo)(nil)

type FakeAPITokenRepo struct {
	tokens map[string]*apitoken.APIToken
	lock   sync.Mutex
}

func NewFakeAPITokenRepo() *FakeAPITokenRepo {
	return &FakeAPITokenRepo{
		tokens: make(map[string]*apitoken.APIToken),
	}
}

func (r *FakeAPITokenRepo) Insert(_ context.Context, token *apitoken.APIToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.tokens[token.ID] = cloneToken(token)
	return nil
}

func (r *FakeAPITokenRepo) Get(_ context.Context, id string) (*apitoken.APIToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.tokens[id]
	if !ok {
		return nil, apitoken.ErrTokenNotFound
	}
	return cloneToken(record), nil
}

func (r *FakeAPITokenRepo) ListByUser(_ context.Context, userID string) ([]*apitoken.APIToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var tokens []*apitoken.APIToken
	for _, record := range r.tokens {
		if record.UserID == userID {
			tokens = append(tokens, cloneToken(record))
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.Before(tokens[j].CreatedAt) })
	return tokens, nil
}

func (r *FakeAPITokenRepo) MarkRevoked(_ context.Context, id, userID string, at time.Time) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.tokens[id]
	if !ok || record.UserID != userID || record.Revoked() {
		return false, nil
	}
	revokedAt := at
	record.RevokedAt = &revokedAt
	return true, nil
}

func (r *FakeAPITokenRepo) RecordUsage(_ context.Context, id string, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.tokens[id]
	if !ok {
		return apitoken.ErrTokenNotFound
	}
	usedAt := at
	record.LastUsedAt = &usedAt
	record.UsageCount++
	return nil
}

func cloneToken(t *apitoken.APIToken) *apitoken.APIToken {
	copied := *t
	copied.Scopes = append([]string(nil), t.Scopes...)
	if t.LastUsedAt != nil {
		usedAt := *t.LastUsedAt
		copied.LastUsedAt = &usedAt
	}
	if t.RevokedAt != nil {
		revokedAt := *t.RevokedAt
		copied.RevokedAt = &revokedAt
	}
	return &copied
}
