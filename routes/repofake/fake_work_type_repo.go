package routesrepofake

import (
	"context"
	"sort"
	"sync"

	"github.com/gigledger/gigledger/routes"
)

// FakeWorkTypeRepo is an in-memory WorkTypeRepo for testing.
type FakeWorkTypeRepo struct {
	mu   sync.RWMutex
	byID map[string]*routes.WorkType
}

func NewFakeWorkTypeRepo() *FakeWorkTypeRepo {
	return &FakeWorkTypeRepo{byID: make(map[string]*routes.WorkType)}
}

func (f *FakeWorkTypeRepo) Upsert(_ context.Context, workType *routes.WorkType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *workType
	f.byID[workType.ID] = &clone
	return nil
}

func (f *FakeWorkTypeRepo) Get(_ context.Context, id string) (*routes.WorkType, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	workType, ok := f.byID[id]
	if !ok {
		return nil, routes.ErrNotFound
	}
	clone := *workType
	return &clone, nil
}

func (f *FakeWorkTypeRepo) ListByUser(_ context.Context, userID string) ([]*routes.WorkType, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var result []*routes.WorkType
	for _, workType := range f.byID {
		if workType.UserID != userID {
			continue
		}
		clone := *workType
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *FakeWorkTypeRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return routes.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}
