package devices

import (
	"time"

	"github.com/pkg/errors"
)

// Platform is a closed enumeration of supported mobile platforms. New values
// are added here, not by passing arbitrary strings through.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ErrUnknownPlatform is returned when a platform string is not one of the
// supported values.
var ErrUnknownPlatform = errors.New("unknown platform")

// ParsePlatform converts a wire string into a Platform, rejecting anything
// outside the closed set.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformIOS:
		return PlatformIOS, nil
	case PlatformAndroid:
		return PlatformAndroid, nil
	default:
		return "", errors.Wrapf(ErrUnknownPlatform, "%q", s)
	}
}

// Device is a registered mobile client for one user.
type Device struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Platform   Platform  `json:"platform"`
	PushToken  string    `json:"pushToken,omitempty"`
	AppVersion string    `json:"appVersion,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}
