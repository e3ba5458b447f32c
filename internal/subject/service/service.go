// Package service implements the subject registry: resolving people and
// children and applying the eligibility rules for a given activity.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	activitymodels "rollcall/internal/activity/models"
	"rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
)

// Store abstracts subject persistence.
type Store interface {
	Save(ctx context.Context, subject *models.Subject) error
	FindByID(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)
}

type Registry struct {
	store Store
}

func New(store Store) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("subject store is required")
	}
	return &Registry{store: store}, nil
}

// Resolve looks up a subject by id.
func (r *Registry) Resolve(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subject id is required")
	}
	subject, err := r.store.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "subject %s not found", subjectID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve subject")
	}
	return subject, nil
}

// Register stores a new or updated subject.
func (r *Registry) Register(ctx context.Context, subject *models.Subject) error {
	if subject == nil {
		return dErrors.New(dErrors.CodeBadRequest, "subject is required")
	}
	if err := r.store.Save(ctx, subject); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save subject")
	}
	return nil
}

// CheckEligibility applies kind-matching and age-range rules. Pure function
// over the two entities; `now` anchors the age calculation.
//
// Rules:
//   - a CHILD may only check into KIDS_SERVICE activities
//   - a USER may only check into EVENT or SERVICE activities
//   - a kids-service with an age range requires a date of birth inside it
func CheckEligibility(subject *models.Subject, activity *activitymodels.Activity, now time.Time) error {
	switch subject.Kind {
	case models.KindChild:
		if activity.Kind != activitymodels.KindKidsService {
			return dErrors.Newf(dErrors.CodeNotEligible,
				"child subjects may only attend kids-services, not %s", activity.Kind)
		}
	case models.KindUser:
		if activity.Kind == activitymodels.KindKidsService {
			return dErrors.New(dErrors.CodeNotEligible,
				"user subjects may not attend kids-services")
		}
	default:
		return dErrors.Newf(dErrors.CodeNotEligible, "unknown subject kind %q", subject.Kind)
	}

	if activity.AgeRange != nil {
		age, known := subject.AgeOn(now)
		if !known {
			return dErrors.New(dErrors.CodeNotEligible,
				"activity restricts age but subject has no date of birth on file")
		}
		if !activity.AgeRange.Contains(age) {
			return dErrors.Newf(dErrors.CodeNotEligible,
				"subject age %d outside allowed range %d-%d", age, activity.AgeRange.Min, activity.AgeRange.Max)
		}
	}
	return nil
}

// IsEligible is the boolean form of CheckEligibility for call sites that do
// not need the reason.
func IsEligible(subject *models.Subject, activity *activitymodels.Activity, now time.Time) bool {
	return CheckEligibility(subject, activity, now) == nil
}
