package routes_test

import (
	"context"
	"testing"
	"time"

	"github.com/gigledger/gigledger/routes"
	routesrepofake "github.com/gigledger/gigledger/routes/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	ownerID    = "user-1"
	strangerID = "user-2"
)

func setupService(t *testing.T) *routes.Service {
	t.Helper()
	service, err := routes.NewService(routes.Repos{
		Routes:    routesrepofake.NewFakeRouteRepo(),
		WorkTypes: routesrepofake.NewFakeWorkTypeRepo(),
	}, zerolog.Nop())
	require.NoError(t, err)
	return service
}

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestRouteCRUD(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	created, err := s.CreateRoute(ctx, ownerID, &routes.Route{
		Date:        day(1),
		WorkType:    "courier",
		DistanceKm:  42.5,
		Minutes:     300,
		GrossIncome: 120,
		Tips:        15,
		Expenses:    10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.GetRoute(ctx, ownerID, created.ID)
	require.NoError(t, err)
	require.InDelta(t, 125.0, got.NetIncome(), 1e-9)
	require.InDelta(t, 25.0, got.HourlyRate(), 1e-9)

	got.Tips = 25
	updated, err := s.UpdateRoute(ctx, ownerID, got)
	require.NoError(t, err)
	require.InDelta(t, 135.0, updated.NetIncome(), 1e-9)

	require.NoError(t, s.DeleteRoute(ctx, ownerID, created.ID))
	_, err = s.GetRoute(ctx, ownerID, created.ID)
	require.ErrorIs(t, err, routes.ErrNotFound)
}

func TestRouteOwnershipEnforced(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	created, err := s.CreateRoute(ctx, ownerID, &routes.Route{
		Date: day(1), WorkType: "courier", Minutes: 60, GrossIncome: 20,
	})
	require.NoError(t, err)

	// Another user probing the real ID gets the same answer as a missing row.
	_, err = s.GetRoute(ctx, strangerID, created.ID)
	require.ErrorIs(t, err, routes.ErrNotFound)
	require.ErrorIs(t, s.DeleteRoute(ctx, strangerID, created.ID), routes.ErrNotFound)
	_, err = s.UpdateRoute(ctx, strangerID, created)
	require.ErrorIs(t, err, routes.ErrNotFound)

	// Still intact for the owner.
	_, err = s.GetRoute(ctx, ownerID, created.ID)
	require.NoError(t, err)
}

func TestRouteValidation(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	_, err := s.CreateRoute(ctx, ownerID, &routes.Route{Date: day(1), Minutes: 60})
	require.Error(t, err) // missing work type

	_, err = s.CreateRoute(ctx, ownerID, &routes.Route{WorkType: "courier", Minutes: 60})
	require.Error(t, err) // missing date

	_, err = s.CreateRoute(ctx, ownerID, &routes.Route{Date: day(1), WorkType: "courier", Minutes: -5})
	require.Error(t, err)
}

func TestListRoutesDateWindow(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	for d := 1; d <= 5; d++ {
		_, err := s.CreateRoute(ctx, ownerID, &routes.Route{
			Date: day(d), WorkType: "courier", Minutes: 60, GrossIncome: float64(d),
		})
		require.NoError(t, err)
	}
	_, err := s.CreateRoute(ctx, strangerID, &routes.Route{
		Date: day(3), WorkType: "courier", Minutes: 60,
	})
	require.NoError(t, err)

	listed, err := s.ListRoutes(ctx, ownerID, day(2), day(5))
	require.NoError(t, err)
	require.Len(t, listed, 3)
	// Newest first.
	require.Equal(t, day(4), listed[0].Date)
	require.Equal(t, day(2), listed[2].Date)

	all, err := s.ListRoutes(ctx, ownerID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestWorkTypeCRUD(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	courier, err := s.UpsertWorkType(ctx, ownerID, &routes.WorkType{Name: "courier", HourlyTarget: 22})
	require.NoError(t, err)
	_, err = s.UpsertWorkType(ctx, ownerID, &routes.WorkType{Name: "rideshare"})
	require.NoError(t, err)

	listed, err := s.ListWorkTypes(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	courier.HourlyTarget = 25
	updated, err := s.UpsertWorkType(ctx, ownerID, courier)
	require.NoError(t, err)
	require.Equal(t, courier.ID, updated.ID)

	_, err = s.UpsertWorkType(ctx, strangerID, courier)
	require.ErrorIs(t, err, routes.ErrNotFound)
	require.ErrorIs(t, s.DeleteWorkType(ctx, strangerID, courier.ID), routes.ErrNotFound)

	require.NoError(t, s.DeleteWorkType(ctx, ownerID, courier.ID))
	listed, err = s.ListWorkTypes(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}
