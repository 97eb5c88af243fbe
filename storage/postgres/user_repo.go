package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/internal/utils"
	"github.com/gigledger/gigledger/users"
)

// UserRepo is the pgx implementation of users.UserRepo. The two-factor
// enrolment lives in nullable columns on the users row so load and clear are
// single statements.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

var _ users.UserRepo = (*UserRepo)(nil)

const userColumns = `id, email, password_hash, first_name, last_name, date_joined, last_login,
	two_factor_enabled, tfa_secret, tfa_recovery_email, tfa_verified, tfa_created_at, tfa_verified_at`

func (r *UserRepo) Upsert(ctx context.Context, user *users.User) error {
	const q = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, date_joined, last_login, two_factor_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name`
	var lastLogin *time.Time
	if !user.LastLogin.IsZero() {
		lastLogin = &user.LastLogin
	}
	_, err := r.pool.Exec(ctx, q, user.ID, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.DateJoined, lastLogin, user.TwoFactorEnabled)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.Upsert] exec")
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE email = $1`, email)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.Delete] exec")
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]*users.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY email OFFSET $1 LIMIT $2`
	rows, err := r.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[UserRepo.List] query")
	}
	defer rows.Close()

	var result []*users.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, errors.Wrap(rows.Err(), "[UserRepo.List] rows")
}

func (r *UserRepo) SetLastLogin(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, userID)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.SetLastLogin] exec")
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetTwoFactor(ctx context.Context, userID string, tfa *users.TwoFactorAuth, enabled bool) error {
	const q = `
		UPDATE users SET
			two_factor_enabled = $2,
			tfa_secret = $3,
			tfa_recovery_email = $4,
			tfa_verified = $5,
			tfa_created_at = $6,
			tfa_verified_at = $7
		WHERE id = $1`

	var (
		secret, recoveryEmail *string
		verified              *bool
		createdAt, verifiedAt *time.Time
	)
	if tfa != nil {
		secret = utils.Ptr(tfa.SecretKey)
		recoveryEmail = utils.Ptr(tfa.RecoveryEmail)
		verified = utils.Ptr(tfa.IsVerified)
		createdAt = utils.Ptr(tfa.CreatedAt)
		verifiedAt = tfa.VerifiedAt
	}

	tag, err := r.pool.Exec(ctx, q, userID, enabled, secret, recoveryEmail, verified, createdAt, verifiedAt)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.SetTwoFactor] exec")
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) scanUser(row pgx.Row) (*users.User, error) {
	var (
		user                  users.User
		lastLogin             *time.Time
		secret, recoveryEmail *string
		verified              *bool
		createdAt, verifiedAt *time.Time
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.DateJoined, &lastLogin, &user.TwoFactorEnabled,
		&secret, &recoveryEmail, &verified, &createdAt, &verifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, errors.Wrap(err, "[UserRepo.scanUser] scan")
	}
	user.LastLogin = utils.Value(lastLogin)
	if secret != nil {
		user.TwoFactor = &users.TwoFactorAuth{
			SecretKey:  *secret,
			VerifiedAt: verifiedAt,
		}
		if recoveryEmail != nil {
			user.TwoFactor.RecoveryEmail = *recoveryEmail
		}
		if verified != nil {
			user.TwoFactor.IsVerified = *verified
		}
		if createdAt != nil {
			user.TwoFactor.CreatedAt = *createdAt
		}
	}
	return &user, nil
}
