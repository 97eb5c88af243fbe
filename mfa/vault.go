package mfa

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Vault issues and consumes single-use backup codes. Codes are stored as
// bcrypt hashes; consumption relies on the repo's conditional mark-used so two
// concurrent submissions of the same code resolve to exactly one winner.
type Vault struct {
	repo       BackupCodeRepo
	logger     zerolog.Logger
	bcryptCost int
	codeCount  int
	nowTime    func() time.Time
}

type VaultOption func(*Vault)

// WithBcryptCost overrides the hash cost (primarily for tests).
func WithBcryptCost(cost int) VaultOption {
	return func(v *Vault) {
		v.bcryptCost = cost
	}
}

// WithCodeCount overrides how many codes Issue produces.
func WithCodeCount(n int) VaultOption {
	return func(v *Vault) {
		v.codeCount = n
	}
}

// WithVaultNowTime sets the clock (primarily for tests).
func WithVaultNowTime(now func() time.Time) VaultOption {
	return func(v *Vault) {
		v.nowTime = now
	}
}

func NewVault(repo BackupCodeRepo, logger zerolog.Logger, options ...VaultOption) (*Vault, error) {
	if repo == nil {
		return nil, errors.New("[NewVault] backup code repo is required")
	}

	v := &Vault{
		repo:       repo,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
		codeCount:  DefaultBackupCodeCount,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Issue generates a fresh code set for the user, replacing any previous set.
// Regeneration is destructive: old codes fail Consume from this point on. The
// cleartext codes are returned once and never retained.
func (v *Vault) Issue(ctx context.Context, userID string) ([]string, error) {
	plain, err := GenerateBackupCodes(v.codeCount)
	if err != nil {
		return nil, errors.Wrap(err, "[Vault.Issue] generate")
	}

	now := v.nowTime()
	records := make([]BackupCode, 0, len(plain))
	for _, code := range plain {
		hash, err := bcrypt.GenerateFromPassword([]byte(CanonicalizeBackupCode(code)), v.bcryptCost)
		if err != nil {
			return nil, errors.Wrap(err, "[Vault.Issue] bcrypt")
		}
		records = append(records, BackupCode{
			ID:        uuid.New().String(),
			UserID:    userID,
			Hash:      string(hash),
			CreatedAt: now,
		})
	}

	if err := v.repo.Replace(ctx, userID, records); err != nil {
		return nil, errors.Wrap(err, "[Vault.Issue] repo.Replace")
	}
	return plain, nil
}

// Consume attempts to spend a backup code. It returns true when the submission
// matched an unused code and this call won the conditional mark-used; false
// with a nil error on no match or an already-used code.
func (v *Vault) Consume(ctx context.Context, userID, code string) (bool, error) {
	canonical := CanonicalizeBackupCode(code)
	if canonical == "" {
		return false, nil
	}

	unused, err := v.repo.ListUnused(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "[Vault.Consume] repo.ListUnused")
	}

	for _, record := range unused {
		if bcrypt.CompareHashAndPassword([]byte(record.Hash), []byte(canonical)) != nil {
			continue
		}
		ok, err := v.repo.MarkUsed(ctx, userID, record.ID, v.nowTime())
		if err != nil {
			return false, errors.Wrap(err, "[Vault.Consume] repo.MarkUsed")
		}
		if !ok {
			// Lost a race against a concurrent submission of the same code.
			v.logger.Warn().
				Str("user_id", userID).
				Msg("backup code replay attempt: code consumed concurrently")
		}
		return ok, nil
	}
	return false, nil
}

// RemainingCount reports how many unused codes the user has left.
func (v *Vault) RemainingCount(ctx context.Context, userID string) (int, error) {
	count, err := v.repo.CountUnused(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "[Vault.RemainingCount] repo.CountUnused")
	}
	return count, nil
}

// Clear removes the user's entire code set (2FA disable).
func (v *Vault) Clear(ctx context.Context, userID string) error {
	if err := v.repo.DeleteAll(ctx, userID); err != nil {
		return errors.Wrap(err, "[Vault.Clear] repo.DeleteAll")
	}
	return nil
}
