package mfarepofake

import (
	"context"
	"sync"
	"time"

	"github.com/gigledger/gigledger/mfa"
)

var _ mfa.BackupCodeRepo = (*FakeBackupCodeRepo)(nil)

// FakeBackupCodeRepo is an in-memory BackupCodeRepo honoring the same
// conditional-update atomicity as the production store.
type FakeBackupCodeRepo struct {
	codes map[string][]*mfa.BackupCode // user ID to code set
	lock  sync.Mutex
}

func NewFakeBackupCodeRepo() *FakeBackupCodeRepo {
	return &FakeBackupCodeRepo{
		codes: make(map[string][]*mfa.BackupCode),
	}
}

func (r *FakeBackupCodeRepo) Replace(_ context.Context, userID string, codes []mfa.BackupCode) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	replacement := make([]*mfa.BackupCode, 0, len(codes))
	for i := range codes {
		copied := codes[i]
		replacement = append(replacement, &copied)
	}
	r.codes[userID] = replacement
	return nil
}

func (r *FakeBackupCodeRepo) ListUnused(_ context.Context, userID string) ([]mfa.BackupCode, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var unused []mfa.BackupCode
	for _, code := range r.codes[userID] {
		if !code.Used {
			unused = append(unused, *code)
		}
	}
	return unused, nil
}

func (r *FakeBackupCodeRepo) MarkUsed(_ context.Context, userID, codeID string, at time.Time) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, code := range r.codes[userID] {
		if code.ID != codeID {
			continue
		}
		if code.Used {
			return false, nil
		}
		code.Used = true
		usedAt := at
		code.UsedAt = &usedAt
		return true, nil
	}
	return false, nil
}

func (r *FakeBackupCodeRepo) CountUnused(_ context.Context, userID string) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	count := 0
	for _, code := range r.codes[userID] {
		if !code.Used {
			count++
		}
	}
	return count, nil
}

func (r *FakeBackupCodeRepo) DeleteAll(_ context.Context, userID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.codes, userID)
	return nil
}
