package store

import (
	"context"
	"sync"

	"rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// InMemory keeps subjects in a map for tests and single-process deployments.
type InMemory struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]*models.Subject
}

func NewInMemory() *InMemory {
	return &InMemory{subjects: make(map[id.SubjectID]*models.Subject)}
}

func (s *InMemory) Save(_ context.Context, subject *models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *subject
	s.subjects[subject.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *subject
	return &cp, nil
}
