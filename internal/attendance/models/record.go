package models

import (
	"time"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Status is the attendance record lifecycle state.
type Status string

const (
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusCheckedOut Status = "CHECKED_OUT"
	StatusNoShow     Status = "NO_SHOW"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusCheckedIn, StatusCheckedOut, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status is one-way: once checked out, marked
// no-show, or cancelled, a record never returns to CHECKED_IN.
func (s Status) IsTerminal() bool {
	return s.IsValid() && s != StatusCheckedIn
}

// CanTransitionTo encodes the state machine:
// CHECKED_IN -> {CHECKED_OUT, NO_SHOW, CANCELLED}; everything else rejected.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusCheckedIn && next.IsTerminal()
}

// AttendanceRecord is the core entity of the ledger.
//
// Invariants:
//   - exactly one activity association and one subject association,
//     enforced at construction via the tagged refs
//   - ID is assigned on creation and immutable
//   - Status transitions follow CanTransitionTo; terminal states are one-way
//   - a subject holds at most one CHECKED_IN record per activity at any time
//     (enforced by the record store, not only the database)
type AttendanceRecord struct {
	ID           id.RecordID    `json:"id"`
	Activity     ActivityRef    `json:"activity"`
	Subject      SubjectRef     `json:"subject"`
	Status       Status         `json:"status"`
	CheckInTime  time.Time      `json:"check_in_time"`
	CheckOutTime *time.Time     `json:"check_out_time,omitempty"`
	CheckedInBy  id.OperatorID  `json:"checked_in_by"`
	CheckedOutBy *id.OperatorID `json:"checked_out_by,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// NewCheckedIn constructs a record in its only reachable initial state.
func NewCheckedIn(recordID id.RecordID, activity ActivityRef, subject SubjectRef, checkedInBy id.OperatorID, notes string, now time.Time) (*AttendanceRecord, error) {
	if recordID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record id is required")
	}
	if activity.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record requires exactly one activity association")
	}
	if subject.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record requires exactly one subject association")
	}
	if checkedInBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "checked-in-by operator is required")
	}
	return &AttendanceRecord{
		ID:          recordID,
		Activity:    activity,
		Subject:     subject,
		Status:      StatusCheckedIn,
		CheckInTime: now,
		CheckedInBy: checkedInBy,
		Notes:       notes,
	}, nil
}

// CanTransitionTo checks whether the record may move to the given status.
// Use with Apply* in store Execute callbacks so validation and mutation run
// under the same lock.
func (r *AttendanceRecord) CanTransitionTo(next Status) error {
	if !next.IsValid() {
		return dErrors.Newf(dErrors.CodeIllegalTransition, "unknown status %q", next)
	}
	if !r.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeIllegalTransition,
			"cannot transition record from %s to %s", r.Status, next)
	}
	return nil
}

// ApplyCheckOut transitions the record to CHECKED_OUT.
// Call CanTransitionTo(StatusCheckedOut) first.
func (r *AttendanceRecord) ApplyCheckOut(by id.OperatorID, notes string, now time.Time) {
	r.Status = StatusCheckedOut
	r.CheckOutTime = &now
	r.CheckedOutBy = &by
	if notes != "" {
		r.Notes = notes
	}
}

// ApplyStatus transitions the record to a terminal administrative status.
// Call CanTransitionTo first.
func (r *AttendanceRecord) ApplyStatus(next Status, by id.OperatorID, notes string, now time.Time) {
	r.Status = next
	if next == StatusCheckedOut {
		r.CheckOutTime = &now
		r.CheckedOutBy = &by
	}
	if notes != "" {
		r.Notes = notes
	}
}

// IsCheckedIn reports whether the record currently occupies a slot.
func (r *AttendanceRecord) IsCheckedIn() bool {
	return r.Status == StatusCheckedIn
}
