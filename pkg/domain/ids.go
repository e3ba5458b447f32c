// Package domain holds shared domain primitives: typed identifiers that make
// cross-entity mixups a compile error rather than a runtime bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "rollcall/pkg/domain-errors"
)

// Typed identifiers. Distinct types prevent passing a subject id where an
// activity id is expected.
type (
	// ActivityID identifies an event, service, or kids-service session.
	ActivityID uuid.UUID

	// SubjectID identifies a user or child being checked in.
	SubjectID uuid.UUID

	// RecordID identifies an attendance record.
	RecordID uuid.UUID

	// OperatorID identifies the authenticated staff member performing an
	// operation. Supplied by the surrounding application; never resolved here.
	OperatorID uuid.UUID
)

func (id ActivityID) String() string { return uuid.UUID(id).String() }
func (id SubjectID) String() string  { return uuid.UUID(id).String() }
func (id RecordID) String() string   { return uuid.UUID(id).String() }
func (id OperatorID) String() string { return uuid.UUID(id).String() }

func (id ActivityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id OperatorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps the canonical UUID form on the wire and in JSON.
func (id ActivityID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id SubjectID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id OperatorID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ActivityID) UnmarshalText(b []byte) error {
	parsed, err := ParseActivityID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *SubjectID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubjectID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RecordID) UnmarshalText(b []byte) error {
	parsed, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *OperatorID) UnmarshalText(b []byte) error {
	parsed, err := ParseOperatorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewRecordID mints a fresh record identifier.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// parseUUID enforces the shared invariant: ids must be valid, non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

// ParseActivityID parses and validates an activity id at a trust boundary.
func ParseActivityID(s string) (ActivityID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ActivityID{}, err
	}
	return ActivityID(u), nil
}

// ParseSubjectID parses and validates a subject id at a trust boundary.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SubjectID{}, err
	}
	return SubjectID(u), nil
}

// ParseRecordID parses and validates a record id at a trust boundary.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

// ParseOperatorID parses and validates an operator id at a trust boundary.
func ParseOperatorID(s string) (OperatorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return OperatorID{}, err
	}
	return OperatorID(u), nil
}
