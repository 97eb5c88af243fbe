package devices_test

import (
	"context"
	"testing"
	"time"

	"github.com/gigledger/gigledger/devices"
	devicesrepofake "github.com/gigledger/gigledger/devices/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	platform, err := devices.ParsePlatform("ios")
	require.NoError(t, err)
	require.Equal(t, devices.PlatformIOS, platform)

	platform, err = devices.ParsePlatform("android")
	require.NoError(t, err)
	require.Equal(t, devices.PlatformAndroid, platform)

	for _, bad := range []string{"", "windows", "IOS", "Android", "ios "} {
		_, err := devices.ParsePlatform(bad)
		require.ErrorIs(t, err, devices.ErrUnknownPlatform, "input %q", bad)
	}
}

func TestRegisterAndTouch(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	service, err := devices.NewService(devicesrepofake.NewFakeDeviceRepo(), zerolog.Nop(),
		devices.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)
	ctx := context.Background()

	device, err := service.Register(ctx, "user-1", devices.RegisterRequest{
		Platform:   "android",
		PushToken:  "fcm-token",
		AppVersion: "2.4.1",
	})
	require.NoError(t, err)
	require.Equal(t, devices.PlatformAndroid, device.Platform)
	require.Equal(t, now, device.LastSeenAt)

	now = now.Add(2 * time.Hour)
	require.NoError(t, service.Touch(ctx, "user-1", device.ID))

	listed, err := service.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, now, listed[0].LastSeenAt)
}

func TestRegisterRejectsUnknownPlatform(t *testing.T) {
	service, err := devices.NewService(devicesrepofake.NewFakeDeviceRepo(), zerolog.Nop())
	require.NoError(t, err)

	_, err = service.Register(context.Background(), "user-1", devices.RegisterRequest{Platform: "blackberry"})
	require.ErrorIs(t, err, devices.ErrUnknownPlatform)

	listed, err := service.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestDeviceOwnership(t *testing.T) {
	service, err := devices.NewService(devicesrepofake.NewFakeDeviceRepo(), zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	device, err := service.Register(ctx, "user-1", devices.RegisterRequest{Platform: "ios"})
	require.NoError(t, err)

	require.ErrorIs(t, service.Touch(ctx, "user-2", device.ID), devices.ErrNotFound)
	require.ErrorIs(t, service.Unregister(ctx, "user-2", device.ID), devices.ErrNotFound)

	require.NoError(t, service.Unregister(ctx, "user-1", device.ID))
	require.ErrorIs(t, service.Unregister(ctx, "user-1", device.ID), devices.ErrNotFound)
}
