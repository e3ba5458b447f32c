package models

import (
	"time"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Kind discriminates persons from children. Children carry their own records
// and can only attend kids-services.
type Kind string

const (
	KindUser  Kind = "USER"
	KindChild Kind = "CHILD"
)

func (k Kind) IsValid() bool {
	return k == KindUser || k == KindChild
}

// Subject is a person or child eligible to attend activities.
type Subject struct {
	ID          id.SubjectID `json:"id"`
	Kind        Kind         `json:"kind"`
	Name        string       `json:"name"`
	DateOfBirth *time.Time   `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewSubject constructs a valid Subject or reports the violated invariant.
func NewSubject(subjectID id.SubjectID, kind Kind, name string, now time.Time) (*Subject, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject id is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown subject kind %q", kind)
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject name cannot be empty")
	}
	return &Subject{
		ID:        subjectID,
		Kind:      kind,
		Name:      name,
		CreatedAt: now,
	}, nil
}

// WithDateOfBirth records the birth date used for age eligibility.
func (s *Subject) WithDateOfBirth(dob time.Time) *Subject {
	s.DateOfBirth = &dob
	return s
}

// AgeOn returns the subject's age in whole years at the given instant, or
// false when no date of birth is on file.
func (s *Subject) AgeOn(at time.Time) (int, bool) {
	if s.DateOfBirth == nil {
		return 0, false
	}
	dob := *s.DateOfBirth
	age := at.Year() - dob.Year()
	// Subtract a year if the birthday has not occurred yet this year.
	anniversary := time.Date(at.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, at.Location())
	if at.Before(anniversary) {
		age--
	}
	return age, true
}
