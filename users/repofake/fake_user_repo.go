package userrepofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gigledger/gigledger/users"
)

// nowFunc returns the current time. It can be overridden in tests.
var nowFunc = time.Now

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	byID    map[string]*users.User
	byEmail map[string]string // email to user ID
	lock    sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		byID:    make(map[string]*users.User),
		byEmail: make(map[string]string),
	}
}

func (r *FakeUserRepo) Upsert(_ context.Context, user *users.User) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	copied := cloneUser(user)
	r.byID[copied.ID] = copied
	r.byEmail[copied.Email] = copied.ID
	return nil
}

func (r *FakeUserRepo) Delete(_ context.Context, email string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	id, ok := r.byEmail[email]
	if !ok {
		return users.ErrNotFound
	}
	delete(r.byEmail, email)
	delete(r.byID, id)
	return nil
}

func (r *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *FakeUserRepo) List(_ context.Context, offset, limit int) ([]*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	all := make([]*users.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, cloneUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *FakeUserRepo) SetLastLogin(_ context.Context, userID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	user, ok := r.byID[userID]
	if !ok {
		return users.ErrNotFound
	}
	user.LastLogin = nowFunc()
	return nil
}

func (r *FakeUserRepo) SetTwoFactor(_ context.Context, userID string, tfa *users.TwoFactorAuth, enabled bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	user, ok := r.byID[userID]
	if !ok {
		return users.ErrNotFound
	}
	user.TwoFactorEnabled = enabled
	if tfa == nil {
		user.TwoFactor = nil
		return nil
	}
	copied := *tfa
	user.TwoFactor = &copied
	return nil
}

func cloneUser(u *users.User) *users.User {
	copied := *u
	if u.TwoFactor != nil {
		tfa := *u.TwoFactor
		copied.TwoFactor = &tfa
	}
	return &copied
}
