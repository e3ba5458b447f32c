package counter

import (
	"context"
	"sync"

	id "rollcall/pkg/domain"
)

// InMemory implements ports.CounterStore with a mutex-guarded map.
//
// The test-and-increment in TryAdmit happens under the lock, so two
// concurrent callers can never both observe the last free slot. Lock scope is
// the whole map rather than per activity; the critical sections are a few
// instructions, which keeps cross-activity contention negligible for a
// single-process deployment. Use the Postgres or Redis store when more than
// one process admits.
type InMemory struct {
	mu       sync.Mutex
	counters map[id.ActivityID]int
}

func NewInMemory() *InMemory {
	return &InMemory{counters: make(map[id.ActivityID]int)}
}

func (s *InMemory) TryAdmit(_ context.Context, activityID id.ActivityID, max *int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.counters[activityID]
	if max != nil && current >= *max {
		return current, false, nil
	}
	current++
	s.counters[activityID] = current
	return current, true, nil
}

func (s *InMemory) Release(_ context.Context, activityID id.ActivityID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.counters[activityID]
	if current > 0 {
		current--
	}
	s.counters[activityID] = current
	return current, nil
}

func (s *InMemory) Current(_ context.Context, activityID id.ActivityID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[activityID], nil
}

func (s *InMemory) Reset(_ context.Context, activityID id.ActivityID, current int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[activityID] = current
	return nil
}

func (s *InMemory) Tracked(_ context.Context) ([]id.ActivityID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]id.ActivityID, 0, len(s.counters))
	for activityID := range s.counters {
		ids = append(ids, activityID)
	}
	return ids, nil
}
