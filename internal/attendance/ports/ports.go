// Package ports defines shared interfaces for the attendance module.
// Interfaces live here when consumed by more than one service to avoid
// duplication between the gate, the ledger, and the query side.
package ports

import (
	"context"
	"time"

	activitymodels "rollcall/internal/activity/models"
	"rollcall/internal/attendance/models"
	"rollcall/internal/notify"
	subjectmodels "rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
)

// TimeWindow bounds history queries. Nil ends are unbounded.
type TimeWindow struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && t.After(*w.To) {
		return false
	}
	return true
}

// Cursor marks a position in a check-in-time-descending listing so history
// reads are restartable per call.
type Cursor struct {
	CheckInTime time.Time
	ID          id.RecordID
}

// CounterStore holds per-activity occupancy counters. Implementations must
// make TryAdmit a single atomic test-and-increment step per activity id;
// different activities must not contend with each other.
type CounterStore interface {
	// TryAdmit increments the counter when below max and reports whether it
	// did. A nil max means unlimited: the counter still increments for
	// observability but admission always succeeds. Returns the counter value
	// after the call.
	TryAdmit(ctx context.Context, activityID id.ActivityID, max *int) (current int, admitted bool, err error)

	// Release decrements the counter by one, never below zero. Pairing 1:1
	// with a prior successful TryAdmit is the caller's responsibility.
	Release(ctx context.Context, activityID id.ActivityID) (current int, err error)

	// Current returns a point-in-time read. It may trail in-flight admits but
	// never understates committed check-ins.
	Current(ctx context.Context, activityID id.ActivityID) (int, error)

	// Reset overwrites the counter; used by reconciliation after a restart.
	Reset(ctx context.Context, activityID id.ActivityID, current int) error

	// Tracked returns the activity ids holding a counter, including counters
	// whose true occupancy has drifted above an empty ledger. Reconciliation
	// uses it to zero counters the ledger no longer accounts for.
	Tracked(ctx context.Context) ([]id.ActivityID, error)
}

// RecordStore is the durable home of attendance records. It owns the
// uniqueness invariant: at most one CHECKED_IN record per (subject, activity).
type RecordStore interface {
	// CreateCheckedIn inserts a new CHECKED_IN record unless the subject
	// already holds one for the activity, in which case it returns
	// sentinel.ErrAlreadyUsed. The check and the insert are one atomic step.
	CreateCheckedIn(ctx context.Context, record *models.AttendanceRecord) error

	FindByID(ctx context.Context, recordID id.RecordID) (*models.AttendanceRecord, error)

	// FindActive returns the subject's CHECKED_IN record for the activity,
	// or sentinel.ErrNotFound.
	FindActive(ctx context.Context, subject models.SubjectRef, activity models.ActivityRef) (*models.AttendanceRecord, error)

	// Execute runs validate then apply on the record while holding the
	// store's lock (mutex or SELECT ... FOR UPDATE), so state transitions are
	// race-free. Returns the updated record.
	Execute(ctx context.Context, recordID id.RecordID,
		validate func(*models.AttendanceRecord) error,
		apply func(*models.AttendanceRecord)) (*models.AttendanceRecord, error)

	// ListByActivity returns records for the activity, optionally filtered by
	// status, ordered by check-in time ascending.
	ListByActivity(ctx context.Context, activity models.ActivityRef, status *models.Status) ([]*models.AttendanceRecord, error)

	// ListBySubject returns the subject's records inside the window, ordered
	// by check-in time descending.
	ListBySubject(ctx context.Context, subject models.SubjectRef, window TimeWindow) ([]*models.AttendanceRecord, error)

	// ListBySubjectPage is the cursor-paged form of ListBySubject. A nil
	// cursor starts from the newest record; the returned cursor is nil when
	// the listing is exhausted.
	ListBySubjectPage(ctx context.Context, subject models.SubjectRef, window TimeWindow, cursor *Cursor, limit int) ([]*models.AttendanceRecord, *Cursor, error)

	// Aggregate computes the per-activity stats in a single pass without
	// taking the write lock.
	Aggregate(ctx context.Context, activity models.ActivityRef) (*models.ActivityStats, error)

	// ActiveCounts returns CHECKED_IN record counts per activity id; the
	// reconciliation source of truth for counter recovery.
	ActiveCounts(ctx context.Context) (map[id.ActivityID]int, error)
}

// ActivityRegistry is the ledger's and gate's view of activity resolution.
type ActivityRegistry interface {
	Resolve(ctx context.Context, activityID id.ActivityID) (*activitymodels.Activity, error)
}

// SubjectRegistry is the ledger's view of subject resolution.
type SubjectRegistry interface {
	Resolve(ctx context.Context, subjectID id.SubjectID) (*subjectmodels.Subject, error)
}

// Notifier dispatches attendance events to the surrounding application.
// Dispatch failures must never fail the attendance operation itself.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event) error
}
