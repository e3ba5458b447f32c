package models

import (
	activitymodels "rollcall/internal/activity/models"
	subjectmodels "rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// ActivityRef names exactly one activity as a tagged union of kind and id.
// The source system modelled this as three nullable foreign keys with an
// "exactly one set" runtime guard; the tagged union makes the two-of-three
// case unrepresentable.
type ActivityRef struct {
	Kind activitymodels.Kind `json:"kind"`
	ID   id.ActivityID       `json:"id"`
}

// NewActivityRef validates the pair at a trust boundary.
func NewActivityRef(kind activitymodels.Kind, activityID id.ActivityID) (ActivityRef, error) {
	if !kind.IsValid() {
		return ActivityRef{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown activity kind %q", kind)
	}
	if activityID.IsNil() {
		return ActivityRef{}, dErrors.New(dErrors.CodeInvalidInput, "activity id is required")
	}
	return ActivityRef{Kind: kind, ID: activityID}, nil
}

func (r ActivityRef) IsZero() bool {
	return r.ID.IsNil()
}

// SubjectRef names exactly one subject, user or child.
type SubjectRef struct {
	Kind subjectmodels.Kind `json:"kind"`
	ID   id.SubjectID       `json:"id"`
}

// NewSubjectRef validates the pair at a trust boundary.
func NewSubjectRef(kind subjectmodels.Kind, subjectID id.SubjectID) (SubjectRef, error) {
	if !kind.IsValid() {
		return SubjectRef{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown subject kind %q", kind)
	}
	if subjectID.IsNil() {
		return SubjectRef{}, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	return SubjectRef{Kind: kind, ID: subjectID}, nil
}

func (r SubjectRef) IsZero() bool {
	return r.ID.IsNil()
}
