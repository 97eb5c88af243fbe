package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/mfa"
)

// BackupCodeRepo is the pgx implementation of mfa.BackupCodeRepo. Consumption
// is a single conditional UPDATE so concurrent submissions of the same code
// resolve to exactly one winner in the database.
type BackupCodeRepo struct {
	pool *pgxpool.Pool
}

func NewBackupCodeRepo(pool *pgxpool.Pool) *BackupCodeRepo {
	return &BackupCodeRepo{pool: pool}
}

var _ mfa.BackupCodeRepo = (*BackupCodeRepo)(nil)

func (r *BackupCodeRepo) Replace(ctx context.Context, userID string, codes []mfa.BackupCode) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "[BackupCodeRepo.Replace] begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "[BackupCodeRepo.Replace] delete")
	}

	const q = `INSERT INTO backup_codes (id, user_id, hash, used, created_at) VALUES ($1, $2, $3, FALSE, $4)`
	for _, code := range codes {
		if _, err := tx.Exec(ctx, q, code.ID, code.UserID, code.Hash, code.CreatedAt); err != nil {
			return errors.Wrap(err, "[BackupCodeRepo.Replace] insert")
		}
	}
	return errors.Wrap(tx.Commit(ctx), "[BackupCodeRepo.Replace] commit")
}

func (r *BackupCodeRepo) ListUnused(ctx context.Context, userID string) ([]mfa.BackupCode, error) {
	const q = `
		SELECT id, user_id, hash, used, used_at, created_at
		FROM backup_codes
		WHERE user_id = $1 AND NOT used
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[BackupCodeRepo.ListUnused] query")
	}
	defer rows.Close()

	var result []mfa.BackupCode
	for rows.Next() {
		var code mfa.BackupCode
		if err := rows.Scan(&code.ID, &code.UserID, &code.Hash, &code.Used, &code.UsedAt, &code.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "[BackupCodeRepo.ListUnused] scan")
		}
		result = append(result, code)
	}
	return result, errors.Wrap(rows.Err(), "[BackupCodeRepo.ListUnused] rows")
}

func (r *BackupCodeRepo) MarkUsed(ctx context.Context, userID, codeID string, at time.Time) (bool, error) {
	const q = `
		UPDATE backup_codes SET used = TRUE, used_at = $3
		WHERE id = $1 AND user_id = $2 AND NOT used`
	tag, err := r.pool.Exec(ctx, q, codeID, userID, at)
	if err != nil {
		return false, errors.Wrap(err, "[BackupCodeRepo.MarkUsed] exec")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BackupCodeRepo) CountUnused(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM backup_codes WHERE user_id = $1 AND NOT used`, userID).Scan(&count)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, errors.Wrap(err, "[BackupCodeRepo.CountUnused] scan")
	}
	return count, nil
}

func (r *BackupCodeRepo) DeleteAll(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, userID)
	return errors.Wrap(err, "[BackupCodeRepo.DeleteAll] exec")
}
