package devices

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a device does not exist or is not owned by the
// requesting user.
var ErrNotFound = errors.New("device not found")

// Repo defines the interface for device persistence operations
type Repo interface {
	Upsert(ctx context.Context, device *Device) error
	Get(ctx context.Context, id string) (*Device, error)
	ListByUser(ctx context.Context, userID string) ([]*Device, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
