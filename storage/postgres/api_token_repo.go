package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/token/apitoken"
)

// APITokenRepo is the pgx implementation of apitoken.Repo.
type APITokenRepo struct {
	pool *pgxpool.Pool
}

func NewAPITokenRepo(pool *pgxpool.Pool) *APITokenRepo {
	return &APITokenRepo{pool: pool}
}

var _ apitoken.Repo = (*APITokenRepo)(nil)

const apiTokenColumns = `id, user_id, description, scopes, created_at, expires_at, last_used_at, usage_count, revoked_at`

func (r *APITokenRepo) Insert(ctx context.Context, token *apitoken.APIToken) error {
	const q = `
		INSERT INTO api_tokens (` + apiTokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, q, token.ID, token.UserID, token.Description, token.Scopes,
		token.CreatedAt, token.ExpiresAt, token.LastUsedAt, token.UsageCount, token.RevokedAt)
	return errors.Wrap(err, "[APITokenRepo.Insert] exec")
}

func (r *APITokenRepo) Get(ctx context.Context, id string) (*apitoken.APIToken, error) {
	const q = `SELECT ` + apiTokenColumns + ` FROM api_tokens WHERE id = $1`
	token, err := scanAPIToken(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apitoken.ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

func (r *APITokenRepo) ListByUser(ctx context.Context, userID string) ([]*apitoken.APIToken, error) {
	const q = `SELECT ` + apiTokenColumns + ` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[APITokenRepo.ListByUser] query")
	}
	defer rows.Close()

	var result []*apitoken.APIToken
	for rows.Next() {
		token, err := scanAPIToken(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, token)
	}
	return result, errors.Wrap(rows.Err(), "[APITokenRepo.ListByUser] rows")
}

func (r *APITokenRepo) MarkRevoked(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	const q = `
		UPDATE api_tokens SET revoked_at = $3
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, id, userID, at)
	if err != nil {
		return false, errors.Wrap(err, "[APITokenRepo.MarkRevoked] exec")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *APITokenRepo) RecordUsage(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE api_tokens SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, at)
	return errors.Wrap(err, "[APITokenRepo.RecordUsage] exec")
}

func scanAPIToken(row pgx.Row) (*apitoken.APIToken, error) {
	var token apitoken.APIToken
	err := row.Scan(&token.ID, &token.UserID, &token.Description, &token.Scopes,
		&token.CreatedAt, &token.ExpiresAt, &token.LastUsedAt, &token.UsageCount, &token.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, errors.Wrap(err, "[postgres.scanAPIToken] scan")
	}
	return &token, nil
}
