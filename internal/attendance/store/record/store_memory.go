package record

import (
	"context"
	"sort"
	"sync"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// activeKey indexes the at-most-one-CHECKED_IN-per-subject-per-activity
// invariant. Comparable struct keys keep the lookup allocation-free.
type activeKey struct {
	subjectID  id.SubjectID
	activityID id.ActivityID
}

// InMemory implements ports.RecordStore with mutex-guarded maps. The active
// index is maintained alongside the records under the same lock, so the
// uniqueness check in CreateCheckedIn and the insert are one atomic step.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.AttendanceRecord
	active  map[activeKey]id.RecordID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[id.RecordID]*models.AttendanceRecord),
		active:  make(map[activeKey]id.RecordID),
	}
}

func keyOf(record *models.AttendanceRecord) activeKey {
	return activeKey{subjectID: record.Subject.ID, activityID: record.Activity.ID}
}

func (s *InMemory) CreateCheckedIn(_ context.Context, record *models.AttendanceRecord) error {
	if !record.IsCheckedIn() {
		return sentinel.ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(record)
	if _, exists := s.active[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}

	cp := *record
	s.records[record.ID] = &cp
	s.active[key] = record.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, recordID id.RecordID) (*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (s *InMemory) FindActive(_ context.Context, subject models.SubjectRef, activity models.ActivityRef) (*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recordID, ok := s.active[activeKey{subjectID: subject.ID, activityID: activity.ID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.records[recordID]
	return &cp, nil
}

// Execute holds the write lock across validate and apply, so a state
// transition can never race a concurrent transition or create.
func (s *InMemory) Execute(_ context.Context, recordID id.RecordID,
	validate func(*models.AttendanceRecord) error,
	apply func(*models.AttendanceRecord)) (*models.AttendanceRecord, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(record); err != nil {
		return nil, err
	}

	wasActive := record.IsCheckedIn()
	apply(record)
	if wasActive && !record.IsCheckedIn() {
		delete(s.active, keyOf(record))
	}

	cp := *record
	return &cp, nil
}

func (s *InMemory) ListByActivity(_ context.Context, activity models.ActivityRef, status *models.Status) ([]*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AttendanceRecord
	for _, record := range s.records {
		if record.Activity != activity {
			continue
		}
		if status != nil && record.Status != *status {
			continue
		}
		cp := *record
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckInTime.Before(out[j].CheckInTime)
	})
	return out, nil
}

func (s *InMemory) ListBySubject(_ context.Context, subject models.SubjectRef, window ports.TimeWindow) ([]*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBySubjectLocked(subject, window), nil
}

func (s *InMemory) listBySubjectLocked(subject models.SubjectRef, window ports.TimeWindow) []*models.AttendanceRecord {
	var out []*models.AttendanceRecord
	for _, record := range s.records {
		if record.Subject != subject {
			continue
		}
		if !window.Contains(record.CheckInTime) {
			continue
		}
		cp := *record
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckInTime.Equal(out[j].CheckInTime) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CheckInTime.After(out[j].CheckInTime)
	})
	return out
}

func (s *InMemory) ListBySubjectPage(_ context.Context, subject models.SubjectRef, window ports.TimeWindow, cursor *ports.Cursor, limit int) ([]*models.AttendanceRecord, *ports.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.listBySubjectLocked(subject, window)

	start := 0
	if cursor != nil {
		for i, record := range all {
			if record.CheckInTime.Equal(cursor.CheckInTime) && record.ID == cursor.ID {
				start = i + 1
				break
			}
			// Cursor record may have been mutated away; resume at the first
			// record strictly older than the cursor position.
			if record.CheckInTime.Before(cursor.CheckInTime) {
				start = i
				break
			}
			start = i + 1
		}
	}
	if start >= len(all) {
		return nil, nil, nil
	}

	end := start + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	page := all[start:end]

	var next *ports.Cursor
	if end < len(all) && len(page) > 0 {
		last := page[len(page)-1]
		next = &ports.Cursor{CheckInTime: last.CheckInTime, ID: last.ID}
	}
	return page, next, nil
}

func (s *InMemory) Aggregate(_ context.Context, activity models.ActivityRef) (*models.ActivityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.ActivityStats{Activity: activity}
	for _, record := range s.records {
		if record.Activity != activity {
			continue
		}
		stats.Add(record.Status)
	}
	return stats, nil
}

func (s *InMemory) ActiveCounts(_ context.Context) (map[id.ActivityID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[id.ActivityID]int)
	for key := range s.active {
		counts[key.activityID]++
	}
	return counts, nil
}
