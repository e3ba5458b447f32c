package models

import (
	"time"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Kind discriminates what a subject can check into.
type Kind string

const (
	KindEvent       Kind = "EVENT"
	KindService     Kind = "SERVICE"
	KindKidsService Kind = "KIDS_SERVICE"
)

// IsValid reports whether the kind is one of the known activity kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindEvent, KindService, KindKidsService:
		return true
	}
	return false
}

// AgeRange bounds subject age in whole years, inclusive on both ends.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether age falls inside the range.
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// Activity is a checkable-into thing: an event, a recurring service, or a
// kids-service session.
//
// Invariants:
//   - Kind is one of the known kinds
//   - Capacity, when set, is positive
//   - AgeRange, when set, has Min <= Max and only appears on kids-services
//
// The registry owns this entity; the attendance ledger treats it as
// immutable. Live occupancy lives with the capacity gate, not here.
type Activity struct {
	ID               id.ActivityID `json:"id"`
	Kind             Kind          `json:"kind"`
	Name             string        `json:"name"`
	Capacity         *int          `json:"capacity,omitempty"`
	AgeRange         *AgeRange     `json:"age_range,omitempty"`
	AcceptingCheckIn bool          `json:"accepting_check_ins"`
	WindowStart      *time.Time    `json:"window_start,omitempty"`
	WindowEnd        *time.Time    `json:"window_end,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// NewActivity constructs a valid Activity or reports the violated invariant.
func NewActivity(activityID id.ActivityID, kind Kind, name string, now time.Time) (*Activity, error) {
	if activityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "activity id is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown activity kind %q", kind)
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "activity name cannot be empty")
	}
	return &Activity{
		ID:               activityID,
		Kind:             kind,
		Name:             name,
		AcceptingCheckIn: true,
		CreatedAt:        now,
	}, nil
}

// WithCapacity sets a positive occupancy ceiling.
func (a *Activity) WithCapacity(capacity int) (*Activity, error) {
	if capacity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "capacity must be positive")
	}
	a.Capacity = &capacity
	return a, nil
}

// WithAgeRange restricts admission by subject age. Only meaningful for
// kids-services; the registry rejects it elsewhere.
func (a *Activity) WithAgeRange(min, max int) (*Activity, error) {
	if a.Kind != KindKidsService {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "age range only applies to kids-services")
	}
	if min < 0 || max < min {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "age range must satisfy 0 <= min <= max")
	}
	a.AgeRange = &AgeRange{Min: min, Max: max}
	return a, nil
}

// WithWindow bounds the eligibility window.
func (a *Activity) WithWindow(start, end time.Time) (*Activity, error) {
	if !end.After(start) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "window end must be after window start")
	}
	a.WindowStart = &start
	a.WindowEnd = &end
	return a, nil
}

// IsOpenAt reports whether check-ins are being accepted at the given instant:
// the accepting flag is on and the instant falls inside the window, if any.
func (a *Activity) IsOpenAt(now time.Time) bool {
	if !a.AcceptingCheckIn {
		return false
	}
	if a.WindowStart != nil && now.Before(*a.WindowStart) {
		return false
	}
	if a.WindowEnd != nil && now.After(*a.WindowEnd) {
		return false
	}
	return true
}
