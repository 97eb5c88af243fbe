package devicesrepofake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gigledger/gigledger/devices"
)

// FakeDeviceRepo is an in-memory devices.Repo for testing.
type FakeDeviceRepo struct {
	mu   sync.RWMutex
	byID map[string]*devices.Device
}

func NewFakeDeviceRepo() *FakeDeviceRepo {
	return &FakeDeviceRepo{byID: make(map[string]*devices.Device)}
}

func (f *FakeDeviceRepo) Upsert(_ context.Context, device *devices.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *device
	f.byID[device.ID] = &clone
	return nil
}

func (f *FakeDeviceRepo) Get(_ context.Context, id string) (*devices.Device, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	device, ok := f.byID[id]
	if !ok {
		return nil, devices.ErrNotFound
	}
	clone := *device
	return &clone, nil
}

func (f *FakeDeviceRepo) ListByUser(_ context.Context, userID string) ([]*devices.Device, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var result []*devices.Device
	for _, device := range f.byID {
		if device.UserID != userID {
			continue
		}
		clone := *device
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (f *FakeDeviceRepo) Touch(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.byID[id]
	if !ok {
		return devices.ErrNotFound
	}
	device.LastSeenAt = at
	return nil
}

func (f *FakeDeviceRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return devices.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}
