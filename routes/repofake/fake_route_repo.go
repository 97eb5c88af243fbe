package routesrepofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gigledger/gigledger/routes"
)

// FakeRouteRepo is an in-memory RouteRepo for testing.
type FakeRouteRepo struct {
	mu   sync.RWMutex
	byID map[string]*routes.Route
}

func NewFakeRouteRepo() *FakeRouteRepo {
	return &FakeRouteRepo{byID: make(map[string]*routes.Route)}
}

func (f *FakeRouteRepo) Upsert(_ context.Context, route *routes.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[route.ID] = cloneRoute(route)
	return nil
}

func (f *FakeRouteRepo) Get(_ context.Context, id string) (*routes.Route, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	route, ok := f.byID[id]
	if !ok {
		return nil, routes.ErrNotFound
	}
	return cloneRoute(route), nil
}

func (f *FakeRouteRepo) ListByUser(_ context.Context, userID string, from, to time.Time) ([]*routes.Route, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var result []*routes.Route
	for _, route := range f.byID {
		if route.UserID != userID {
			continue
		}
		if !from.IsZero() && route.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !route.Date.Before(to) {
			continue
		}
		result = append(result, cloneRoute(route))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	return result, nil
}

func (f *FakeRouteRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return routes.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func cloneRoute(r *routes.Route) *routes.Route {
	clone := *r
	return &clone
}
