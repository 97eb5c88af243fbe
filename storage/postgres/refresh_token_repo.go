package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/token/refresh"
)

// RefreshTokenRepo is the pgx implementation of refresh.Repo. Rotation and
// revocation are single conditional UPDATEs keyed on "still unrevoked", which
// is what makes concurrent rotation of one token resolve to a single winner.
type RefreshTokenRepo struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepo(pool *pgxpool.Pool) *RefreshTokenRepo {
	return &RefreshTokenRepo{pool: pool}
}

var _ refresh.Repo = (*RefreshTokenRepo)(nil)

func (r *RefreshTokenRepo) Insert(ctx context.Context, token *refresh.RefreshToken) error {
	const q = `
		INSERT INTO refresh_tokens (token, user_id, api_token_id, created_at, expires_at, created_by_ip, revoked_at, replaced_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, q, token.Token, token.UserID, token.APITokenID,
		token.CreatedAt, token.ExpiresAt, token.CreatedByIP, token.RevokedAt, token.ReplacedBy)
	return errors.Wrap(err, "[RefreshTokenRepo.Insert] exec")
}

func (r *RefreshTokenRepo) Get(ctx context.Context, tokenValue string) (*refresh.RefreshToken, error) {
	const q = `
		SELECT token, user_id, api_token_id, created_at, expires_at, created_by_ip, revoked_at, replaced_by
		FROM refresh_tokens WHERE token = $1`
	var token refresh.RefreshToken
	err := r.pool.QueryRow(ctx, q, tokenValue).Scan(&token.Token, &token.UserID, &token.APITokenID,
		&token.CreatedAt, &token.ExpiresAt, &token.CreatedByIP, &token.RevokedAt, &token.ReplacedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refresh.ErrNotFound
		}
		return nil, errors.Wrap(err, "[RefreshTokenRepo.Get] scan")
	}
	return &token, nil
}

func (r *RefreshTokenRepo) MarkRotated(ctx context.Context, tokenValue, replacedBy string, at time.Time) (bool, error) {
	const q = `
		UPDATE refresh_tokens SET revoked_at = $2, replaced_by = $3
		WHERE token = $1 AND revoked_at IS NULL AND expires_at > $2`
	tag, err := r.pool.Exec(ctx, q, tokenValue, at, replacedBy)
	if err != nil {
		return false, errors.Wrap(err, "[RefreshTokenRepo.MarkRotated] exec")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RefreshTokenRepo) MarkRevoked(ctx context.Context, tokenValue string, at time.Time) (bool, error) {
	const q = `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE token = $1 AND revoked_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, tokenValue, at)
	if err != nil {
		return false, errors.Wrap(err, "[RefreshTokenRepo.MarkRevoked] exec")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID, apiTokenID string, at time.Time) (int, error) {
	const q = `
		UPDATE refresh_tokens SET revoked_at = $3
		WHERE user_id = $1 AND api_token_id = $2 AND revoked_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, userID, apiTokenID, at)
	if err != nil {
		return 0, errors.Wrap(err, "[RefreshTokenRepo.RevokeAllForUser] exec")
	}
	return int(tag.RowsAffected()), nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "[RefreshTokenRepo.DeleteExpired] exec")
	}
	return int(tag.RowsAffected()), nil
}
