package routes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Routes    RouteRepo
	WorkTypes WorkTypeRepo
}

// Service owns route and work-type CRUD. Every read and mutation is checked
// against the owning user: a caller can never see or touch another user's
// entries, even with a guessed ID.
type Service struct {
	repos  Repos
	logger zerolog.Logger
}

// NewService initializes the route service with required dependencies.
func NewService(repos Repos, logger zerolog.Logger) (*Service, error) {
	if repos.Routes == nil {
		return nil, errors.New("[routes.NewService] Routes repo is required")
	}
	if repos.WorkTypes == nil {
		return nil, errors.New("[routes.NewService] WorkTypes repo is required")
	}
	return &Service{repos: repos, logger: logger}, nil
}

// CreateRoute validates and stores a new route entry for the user.
func (s *Service) CreateRoute(ctx context.Context, userID string, route *Route) (*Route, error) {
	route.UserID = userID
	if route.ID == "" {
		route.ID = uuid.New().String()
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}
	if err := s.repos.Routes.Upsert(ctx, route); err != nil {
		return nil, errors.Wrap(err, "[Service.CreateRoute] Routes.Upsert")
	}
	return route, nil
}

// UpdateRoute replaces an existing route the user owns.
func (s *Service) UpdateRoute(ctx context.Context, userID string, route *Route) (*Route, error) {
	if _, err := s.GetRoute(ctx, userID, route.ID); err != nil {
		return nil, err
	}
	route.UserID = userID
	if err := route.Validate(); err != nil {
		return nil, err
	}
	if err := s.repos.Routes.Upsert(ctx, route); err != nil {
		return nil, errors.Wrap(err, "[Service.UpdateRoute] Routes.Upsert")
	}
	return route, nil
}

// GetRoute fetches a single route, enforcing ownership. A route owned by
// another user reports ErrNotFound, same as a missing one.
func (s *Service) GetRoute(ctx context.Context, userID, id string) (*Route, error) {
	route, err := s.repos.Routes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if route.UserID != userID {
		return nil, ErrNotFound
	}
	return route, nil
}

// ListRoutes returns the user's routes within [from, to), newest first.
func (s *Service) ListRoutes(ctx context.Context, userID string, from, to time.Time) ([]*Route, error) {
	return s.repos.Routes.ListByUser(ctx, userID, from, to)
}

// DeleteRoute removes a route the user owns.
func (s *Service) DeleteRoute(ctx context.Context, userID, id string) error {
	if _, err := s.GetRoute(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repos.Routes.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "[Service.DeleteRoute] Routes.Delete")
	}
	return nil
}

// UpsertWorkType creates or updates a work type definition for the user.
func (s *Service) UpsertWorkType(ctx context.Context, userID string, workType *WorkType) (*WorkType, error) {
	workType.UserID = userID
	if workType.ID == "" {
		workType.ID = uuid.New().String()
	} else {
		existing, err := s.repos.WorkTypes.Get(ctx, workType.ID)
		if err != nil {
			return nil, err
		}
		if existing.UserID != userID {
			return nil, ErrNotFound
		}
	}
	if err := workType.Validate(); err != nil {
		return nil, err
	}
	if err := s.repos.WorkTypes.Upsert(ctx, workType); err != nil {
		return nil, errors.Wrap(err, "[Service.UpsertWorkType] WorkTypes.Upsert")
	}
	return workType, nil
}

// ListWorkTypes returns the user's configured work types.
func (s *Service) ListWorkTypes(ctx context.Context, userID string) ([]*WorkType, error) {
	return s.repos.WorkTypes.ListByUser(ctx, userID)
}

// DeleteWorkType removes a work type the user owns. Routes referencing it keep
// their WorkType string; history stays intact.
func (s *Service) DeleteWorkType(ctx context.Context, userID, id string) error {
	existing, err := s.repos.WorkTypes.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return ErrNotFound
	}
	if err := s.repos.WorkTypes.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "[Service.DeleteWorkType] WorkTypes.Delete")
	}
	return nil
}
