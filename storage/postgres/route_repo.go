package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/gigledger/gigledger/routes"
)

// RouteRepo is the pgx implementation of routes.RouteRepo.
type RouteRepo struct {
	pool *pgxpool.Pool
}

func NewRouteRepo(pool *pgxpool.Pool) *RouteRepo {
	return &RouteRepo{pool: pool}
}

var _ routes.RouteRepo = (*RouteRepo)(nil)

const routeColumns = `id, user_id, date, work_type, distance_km, minutes, gross_income, tips, expenses, notes`

func (r *RouteRepo) Upsert(ctx context.Context, route *routes.Route) error {
	const q = `
		INSERT INTO routes (` + routeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			work_type = EXCLUDED.work_type,
			distance_km = EXCLUDED.distance_km,
			minutes = EXCLUDED.minutes,
			gross_income = EXCLUDED.gross_income,
			tips = EXCLUDED.tips,
			expenses = EXCLUDED.expenses,
			notes = EXCLUDED.notes`
	_, err := r.pool.Exec(ctx, q, route.ID, route.UserID, route.Date, route.WorkType,
		route.DistanceKm, route.Minutes, route.GrossIncome, route.Tips, route.Expenses, route.Notes)
	return errors.Wrap(err, "[RouteRepo.Upsert] exec")
}

func (r *RouteRepo) Get(ctx context.Context, id string) (*routes.Route, error) {
	const q = `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`
	var route routes.Route
	err := r.pool.QueryRow(ctx, q, id).Scan(&route.ID, &route.UserID, &route.Date, &route.WorkType,
		&route.DistanceKm, &route.Minutes, &route.GrossIncome, &route.Tips, &route.Expenses, &route.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, routes.ErrNotFound
		}
		return nil, errors.Wrap(err, "[RouteRepo.Get] scan")
	}
	return &route, nil
}

func (r *RouteRepo) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*routes.Route, error) {
	const q = `
		SELECT ` + routeColumns + ` FROM routes
		WHERE user_id = $1
			AND ($2::timestamptz IS NULL OR date >= $2)
			AND ($3::timestamptz IS NULL OR date < $3)
		ORDER BY date DESC`
	var fromArg, toArg *time.Time
	if !from.IsZero() {
		fromArg = &from
	}
	if !to.IsZero() {
		toArg = &to
	}
	rows, err := r.pool.Query(ctx, q, userID, fromArg, toArg)
	if err != nil {
		return nil, errors.Wrap(err, "[RouteRepo.ListByUser] query")
	}
	defer rows.Close()

	var result []*routes.Route
	for rows.Next() {
		var route routes.Route
		if err := rows.Scan(&route.ID, &route.UserID, &route.Date, &route.WorkType,
			&route.DistanceKm, &route.Minutes, &route.GrossIncome, &route.Tips, &route.Expenses, &route.Notes); err != nil {
			return nil, errors.Wrap(err, "[RouteRepo.ListByUser] scan")
		}
		result = append(result, &route)
	}
	return result, errors.Wrap(rows.Err(), "[RouteRepo.ListByUser] rows")
}

func (r *RouteRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "[RouteRepo.Delete] exec")
	}
	if tag.RowsAffected() == 0 {
		return routes.ErrNotFound
	}
	return nil
}

// WorkTypeRepo is the pgx implementation of routes.WorkTypeRepo.
type WorkTypeRepo struct {
	pool *pgxpool.Pool
}

func NewWorkTypeRepo(pool *pgxpool.Pool) *WorkTypeRepo {
	return &WorkTypeRepo{pool: pool}
}

var _ routes.WorkTypeRepo = (*WorkTypeRepo)(nil)

func (r *WorkTypeRepo) Upsert(ctx context.Context, workType *routes.WorkType) error {
	const q = `
		INSERT INTO work_types (id, user_id, name, hourly_target)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, hourly_target = EXCLUDED.hourly_target`
	_, err := r.pool.Exec(ctx, q, workType.ID, workType.UserID, workType.Name, workType.HourlyTarget)
	return errors.Wrap(err, "[WorkTypeRepo.Upsert] exec")
}

func (r *WorkTypeRepo) Get(ctx context.Context, id string) (*routes.WorkType, error) {
	const q = `SELECT id, user_id, name, hourly_target FROM work_types WHERE id = $1`
	var workType routes.WorkType
	err := r.pool.QueryRow(ctx, q, id).Scan(&workType.ID, &workType.UserID, &workType.Name, &workType.HourlyTarget)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, routes.ErrNotFound
		}
		return nil, errors.Wrap(err, "[WorkTypeRepo.Get] scan")
	}
	return &workType, nil
}

func (r *WorkTypeRepo) ListByUser(ctx context.Context, userID string) ([]*routes.WorkType, error) {
	const q = `SELECT id, user_id, name, hourly_target FROM work_types WHERE user_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[WorkTypeRepo.ListByUser] query")
	}
	defer rows.Close()

	var result []*routes.WorkType
	for rows.Next() {
		var workType routes.WorkType
		if err := rows.Scan(&workType.ID, &workType.UserID, &workType.Name, &workType.HourlyTarget); err != nil {
			return nil, errors.Wrap(err, "[WorkTypeRepo.ListByUser] scan")
		}
		result = append(result, &workType)
	}
	return result, errors.Wrap(rows.Err(), "[WorkTypeRepo.ListByUser] rows")
}

func (r *WorkTypeRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM work_types WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "[WorkTypeRepo.Delete] exec")
	}
	if tag.RowsAffected() == 0 {
		return routes.ErrNotFound
	}
	return nil
}
