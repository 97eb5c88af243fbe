package mfa

import (
	"context"
	"time"
)

// BackupCode is a stored single-use recovery credential. Only the bcrypt hash
// of the canonicalized code is persisted.
type BackupCode struct {
	ID        string
	UserID    string
	Hash      string
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// BackupCodeRepo manages persistence of hashed backup codes.
//
// MarkUsed must be a single conditional update: of any number of concurrent
// callers for the same unused code, exactly one may observe true.
type BackupCodeRepo interface {
	// Replace atomically swaps the user's full code set. Previously issued
	// codes, used or not, are permanently invalidated.
	Replace(ctx context.Context, userID string, codes []BackupCode) error

	// ListUnused returns the user's not-yet-consumed codes.
	ListUnused(ctx context.Context, userID string) ([]BackupCode, error)

	// MarkUsed flips a single code to used if and only if it is still unused.
	// Returns false when the code was already consumed or does not exist.
	MarkUsed(ctx context.Context, userID, codeID string, at time.Time) (bool, error)

	// CountUnused reports how many codes remain for status display.
	CountUnused(ctx context.Context, userID string) (int, error)

	// DeleteAll removes every code for the user (2FA disable).
	DeleteAll(ctx context.Context, userID string) error
}
