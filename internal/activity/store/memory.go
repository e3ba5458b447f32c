package store

import (
	"context"
	"sync"

	"rollcall/internal/activity/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// InMemory keeps activities in a map. The registry is read-heavy, so lookups
// take the read lock only.
type InMemory struct {
	mu         sync.RWMutex
	activities map[id.ActivityID]*models.Activity
}

func NewInMemory() *InMemory {
	return &InMemory{activities: make(map[id.ActivityID]*models.Activity)}
}

func (s *InMemory) Save(_ context.Context, activity *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *activity
	s.activities[activity.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, activityID id.ActivityID) (*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[activityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *activity
	return &cp, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Activity, 0, len(s.activities))
	for _, activity := range s.activities {
		cp := *activity
		out = append(out, &cp)
	}
	return out, nil
}
