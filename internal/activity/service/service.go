// Package service implements the activity registry: resolving an activity
// reference to its capacity, window, and age constraints.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rollcall/internal/activity/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
)

// Store abstracts activity persistence so the registry works the same over
// memory and Postgres.
type Store interface {
	Save(ctx context.Context, activity *models.Activity) error
	FindByID(ctx context.Context, activityID id.ActivityID) (*models.Activity, error)
	List(ctx context.Context) ([]*models.Activity, error)
}

type Registry struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func New(store Store, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("activity store is required")
	}
	r := &Registry{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve looks up an activity by id. NotFound is a hard rejection for
// callers deciding a check-in, never a retry target.
func (r *Registry) Resolve(ctx context.Context, activityID id.ActivityID) (*models.Activity, error) {
	if activityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "activity id is required")
	}
	activity, err := r.store.FindByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "activity %s not found", activityID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve activity")
	}
	return activity, nil
}

// Register stores a new or updated activity definition.
func (r *Registry) Register(ctx context.Context, activity *models.Activity) error {
	if activity == nil {
		return dErrors.New(dErrors.CodeBadRequest, "activity is required")
	}
	if err := r.store.Save(ctx, activity); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save activity")
	}
	r.logger.InfoContext(ctx, "activity registered",
		"activity_id", activity.ID,
		"kind", activity.Kind,
	)
	return nil
}

// List returns all known activities.
func (r *Registry) List(ctx context.Context) ([]*models.Activity, error) {
	activities, err := r.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list activities")
	}
	return activities, nil
}
