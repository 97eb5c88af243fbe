package routes

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a route or work type does not exist, or is not
// owned by the requesting user.
var ErrNotFound = errors.New("route not found")

// RouteRepo defines the interface for route persistence operations
type RouteRepo interface {
	Upsert(ctx context.Context, route *Route) error
	Get(ctx context.Context, id string) (*Route, error)
	// ListByUser returns the user's routes with Date in [from, to), newest first.
	// Zero from/to mean unbounded on that side.
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]*Route, error)
	Delete(ctx context.Context, id string) error
}

// WorkTypeRepo defines the interface for work type persistence operations
type WorkTypeRepo interface {
	Upsert(ctx context.Context, workType *WorkType) error
	Get(ctx context.Context, id string) (*WorkType, error)
	ListByUser(ctx context.Context, userID string) ([]*WorkType, error)
	Delete(ctx context.Context, id string) error
}
