// Package gate implements the capacity gate: the single authority deciding
// whether a new check-in may occupy a slot, and the owner of the per-activity
// occupancy counters.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	attendancemetrics "rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

// Gate serializes admission decisions per activity. Atomicity lives in the
// counter store (mutex, conditional UPDATE, or Lua script); the gate adds the
// accepting/window check, metrics, and reconciliation.
type Gate struct {
	counters   ports.CounterStore
	activities ports.ActivityRegistry
	metrics    *attendancemetrics.Metrics
	logger     *slog.Logger
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *attendancemetrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(counters ports.CounterStore, activities ports.ActivityRegistry, opts ...Option) (*Gate, error) {
	if counters == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if activities == nil {
		return nil, fmt.Errorf("activity registry is required")
	}
	g := &Gate{
		counters:   counters,
		activities: activities,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// TryAdmit decides one admission. Denials are data, not errors: the caller
// inspects Admission.Reason. Errors mean the decision could not be made.
func (g *Gate) TryAdmit(ctx context.Context, activityID id.ActivityID) (models.Admission, error) {
	activity, err := g.activities.Resolve(ctx, activityID)
	if err != nil {
		return models.Admission{}, err
	}

	if !activity.IsOpenAt(requestcontext.Now(ctx)) {
		current, err := g.counters.Current(ctx, activityID)
		if err != nil {
			return models.Admission{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read occupancy")
		}
		return models.Admission{Admitted: false, Reason: models.ReasonNotAccepting, Current: current}, nil
	}

	current, admitted, err := g.counters.TryAdmit(ctx, activityID, activity.Capacity)
	if err != nil {
		return models.Admission{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to admit")
	}
	if !admitted {
		return models.Admission{Admitted: false, Reason: models.ReasonAtCapacity, Current: current}, nil
	}

	g.observeOccupancy(activityID, current)
	return models.Admission{Admitted: true, Current: current}, nil
}

// Release returns one slot. Must pair 1:1 with a prior successful TryAdmit
// or an observed check-out; idempotency is the caller's responsibility.
func (g *Gate) Release(ctx context.Context, activityID id.ActivityID) error {
	current, err := g.counters.Release(ctx, activityID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release occupancy")
	}
	g.observeOccupancy(activityID, current)
	return nil
}

// CurrentOccupancy is a point-in-time read. It may trail in-flight admits
// but never understates committed check-ins.
func (g *Gate) CurrentOccupancy(ctx context.Context, activityID id.ActivityID) (int, error) {
	current, err := g.counters.Current(ctx, activityID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read occupancy")
	}
	return current, nil
}

// Reconcile recomputes every counter from the ledger's CHECKED_IN counts.
// Run on startup: a crash between a successful admit and the ledger write can
// leave the counter one above the truth, and recomputing heals the drift.
// Counters the ledger no longer accounts for are zeroed, not skipped; the
// drifted-over-empty case is exactly the one recovery exists for.
func (g *Gate) Reconcile(ctx context.Context, records ports.RecordStore) error {
	counts, err := records.ActiveCounts(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read active counts")
	}
	tracked, err := g.counters.Tracked(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list counters")
	}
	for _, activityID := range tracked {
		if _, ok := counts[activityID]; !ok {
			counts[activityID] = 0
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for activityID, count := range counts {
		eg.Go(func() error {
			if err := g.counters.Reset(egCtx, activityID, count); err != nil {
				return fmt.Errorf("reset counter for %s: %w", activityID, err)
			}
			g.observeOccupancy(activityID, count)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "counter reconciliation failed")
	}

	g.logger.InfoContext(ctx, "occupancy counters reconciled", "activities", len(counts))
	return nil
}

func (g *Gate) observeOccupancy(activityID id.ActivityID, current int) {
	if g.metrics != nil {
		g.metrics.SetOccupancy(activityID.String(), current)
	}
}
