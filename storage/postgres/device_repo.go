package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/devices"
)

// DeviceRepo is the pgx implementation of devices.Repo.
type DeviceRepo struct {
	pool *pgxpool.Pool
}

func NewDeviceRepo(pool *pgxpool.Pool) *DeviceRepo {
	return &DeviceRepo{pool: pool}
}

var _ devices.Repo = (*DeviceRepo)(nil)

const deviceColumns = `id, user_id, platform, push_token, app_version, created_at, last_seen_at`

func (r *DeviceRepo) Upsert(ctx context.Context, device *devices.Device) error {
	const q = `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			push_token = EXCLUDED.push_token,
			app_version = EXCLUDED.app_version,
			last_seen_at = EXCLUDED.last_seen_at`
	_, err := r.pool.Exec(ctx, q, device.ID, device.UserID, string(device.Platform),
		device.PushToken, device.AppVersion, device.CreatedAt, device.LastSeenAt)
	return errors.Wrap(err, "[DeviceRepo.Upsert] exec")
}

func (r *DeviceRepo) Get(ctx context.Context, id string) (*devices.Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	device, err := scanDevice(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, devices.ErrNotFound
		}
		return nil, err
	}
	return device, nil
}

func (r *DeviceRepo) ListByUser(ctx context.Context, userID string) ([]*devices.Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[DeviceRepo.ListByUser] query")
	}
	defer rows.Close()

	var result []*devices.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, device)
	}
	return result, errors.Wrap(rows.Err(), "[DeviceRepo.ListByUser] rows")
}

func (r *DeviceRepo) Touch(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE devices SET last_seen_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return errors.Wrap(err, "[DeviceRepo.Touch] exec")
	}
	if tag.RowsAffected() == 0 {
		return devices.ErrNotFound
	}
	return nil
}

func (r *DeviceRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "[DeviceRepo.Delete] exec")
	}
	if tag.RowsAffected() == 0 {
		return devices.ErrNotFound
	}
	return nil
}

func scanDevice(row pgx.Row) (*devices.Device, error) {
	var (
		device   devices.Device
		platform string
	)
	err := row.Scan(&device.ID, &device.UserID, &platform, &device.PushToken,
		&device.AppVersion, &device.CreatedAt, &device.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, errors.Wrap(err, "[postgres.scanDevice] scan")
	}
	device.Platform = devices.Platform(platform)
	return &device, nil
}
