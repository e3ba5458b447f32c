// Package notify carries attendance events to the surrounding application
// (reminder emails, dashboards, audit trails). The core consumes emitters
// through a narrow interface declared beside the ledger; delivery is a
// collaborator concern.
package notify

import (
	"context"
	"sync"
	"time"

	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
)

// EventType enumerates the attendance events the core emits.
type EventType string

const (
	EventCheckedIn     EventType = "attendance.checked_in"
	EventCheckedOut    EventType = "attendance.checked_out"
	EventStatusChanged EventType = "attendance.status_changed"
)

// Event is one attendance state change, shaped for external consumers.
type Event struct {
	Type       EventType          `json:"type"`
	RecordID   id.RecordID        `json:"record_id"`
	Activity   models.ActivityRef `json:"activity"`
	Subject    models.SubjectRef  `json:"subject"`
	Status     models.Status      `json:"status"`
	OperatorID id.OperatorID      `json:"operator_id"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Memory collects events in-process. Used in tests and as the default when no
// broker is configured.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Emit(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
