package devices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service handles mobile device registration and bookkeeping. Like the route
// service, every operation is scoped to the owning user.
type Service struct {
	repo    Repo
	logger  zerolog.Logger
	nowTime func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = now
	}
}

// NewService initializes the device service.
func NewService(repo Repo, logger zerolog.Logger, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[devices.NewService] repo is required")
	}
	s := &Service{repo: repo, logger: logger, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// RegisterRequest is the wire-level registration payload: platform arrives as
// a string and is parsed into the closed Platform set.
type RegisterRequest struct {
	Platform   string `json:"platform"`
	PushToken  string `json:"pushToken"`
	AppVersion string `json:"appVersion"`
}

// Register records a new device for the user. Unknown platforms are rejected
// before anything is stored.
func (s *Service) Register(ctx context.Context, userID string, req RegisterRequest) (*Device, error) {
	platform, err := ParsePlatform(req.Platform)
	if err != nil {
		return nil, err
	}

	now := s.nowTime()
	device := &Device{
		ID:         uuid.New().String(),
		UserID:     userID,
		Platform:   platform,
		PushToken:  req.PushToken,
		AppVersion: req.AppVersion,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.repo.Upsert(ctx, device); err != nil {
		return nil, errors.Wrap(err, "[Service.Register] repo.Upsert")
	}

	s.logger.Info().Str("user_id", userID).Str("platform", string(platform)).Msg("device registered")
	return device, nil
}

// List returns the user's registered devices.
func (s *Service) List(ctx context.Context, userID string) ([]*Device, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Touch updates a device's last-seen timestamp, typically on app launch.
func (s *Service) Touch(ctx context.Context, userID, id string) error {
	if _, err := s.get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Touch(ctx, id, s.nowTime()); err != nil {
		return errors.Wrap(err, "[Service.Touch] repo.Touch")
	}
	return nil
}

// Unregister removes a device the user owns.
func (s *Service) Unregister(ctx context.Context, userID, id string) error {
	if _, err := s.get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "[Service.Unregister] repo.Delete")
	}
	return nil
}

func (s *Service) get(ctx context.Context, userID, id string) (*Device, error) {
	device, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if device.UserID != userID {
		return nil, ErrNotFound
	}
	return device, nil
}
