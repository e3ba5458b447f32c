// Package service implements the attendance ledger: the source of truth for
// attendance records, their state machine, and the check-in saga across the
// capacity gate and the record store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	attendancemetrics "rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	"rollcall/internal/notify"
	subjectservice "rollcall/internal/subject/service"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// AdmissionGate is the ledger's view of the capacity gate.
type AdmissionGate interface {
	TryAdmit(ctx context.Context, activityID id.ActivityID) (models.Admission, error)
	Release(ctx context.Context, activityID id.ActivityID) error
}

// Ledger owns attendance records and their transitions. All mutations flow
// through it; the query service reads around it.
type Ledger struct {
	records    ports.RecordStore
	gate       AdmissionGate
	activities ports.ActivityRegistry
	subjects   ports.SubjectRegistry
	notifier   ports.Notifier
	metrics    *attendancemetrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *attendancemetrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(l *Ledger) {
		l.notifier = n
	}
}

func New(
	records ports.RecordStore,
	gate AdmissionGate,
	activities ports.ActivityRegistry,
	subjects ports.SubjectRegistry,
	opts ...Option,
) (*Ledger, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if gate == nil {
		return nil, fmt.Errorf("admission gate is required")
	}
	if activities == nil {
		return nil, fmt.Errorf("activity registry is required")
	}
	if subjects == nil {
		return nil, fmt.Errorf("subject registry is required")
	}
	l := &Ledger{
		records:    records,
		gate:       gate,
		activities: activities,
		subjects:   subjects,
		logger:     slog.Default(),
		tracer:     otel.Tracer("rollcall/attendance"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CheckIn admits a subject into an activity and creates the CHECKED_IN
// record. Preconditions run in order: activity exists and is open; subject
// exists and is eligible; subject is not already checked in; the gate admits.
// Once the gate has admitted, any later failure releases the slot again, so
// capacity is never leaked by a half-finished check-in.
//
// On AlreadyCheckedIn the existing record is returned alongside the coded
// error so callers can render the checked-in state directly.
func (l *Ledger) CheckIn(ctx context.Context, subject models.SubjectRef, activity models.ActivityRef, operatorID id.OperatorID, notes string) (*models.AttendanceRecord, error) {
	ctx, span := l.tracer.Start(ctx, "attendance.CheckIn",
		trace.WithAttributes(
			attribute.String("activity.id", activity.ID.String()),
			attribute.String("subject.id", subject.ID.String()),
		))
	defer span.End()

	record, err := l.checkIn(ctx, subject, activity, operatorID, notes)
	if err != nil {
		span.RecordError(err)
		l.countRejection(err)
		return record, err
	}

	if l.metrics != nil {
		l.metrics.IncrementCheckIns()
	}
	l.emit(ctx, notify.EventCheckedIn, record, operatorID)
	return record, nil
}

func (l *Ledger) checkIn(ctx context.Context, subject models.SubjectRef, activity models.ActivityRef, operatorID id.OperatorID, notes string) (*models.AttendanceRecord, error) {
	if operatorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "operator id is required")
	}
	now := requestcontext.Now(ctx)

	resolvedActivity, err := l.activities.Resolve(ctx, activity.ID)
	if err != nil {
		return nil, err
	}
	if resolvedActivity.Kind != activity.Kind {
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"activity %s is a %s, not a %s", activity.ID, resolvedActivity.Kind, activity.Kind)
	}
	if !resolvedActivity.IsOpenAt(now) {
		return nil, dErrors.Newf(dErrors.CodeNotAccepting,
			"activity %s is not accepting check-ins", activity.ID)
	}

	resolvedSubject, err := l.subjects.Resolve(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	if resolvedSubject.Kind != subject.Kind {
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"subject %s is a %s, not a %s", subject.ID, resolvedSubject.Kind, subject.Kind)
	}
	if err := subjectservice.CheckEligibility(resolvedSubject, resolvedActivity, now); err != nil {
		return nil, err
	}

	if existing, err := l.records.FindActive(ctx, subject, activity); err == nil {
		return existing, dErrors.Newf(dErrors.CodeAlreadyCheckedIn,
			"subject %s is already checked into activity %s", subject.ID, activity.ID)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query active record")
	}

	admission, err := l.gate.TryAdmit(ctx, activity.ID)
	if err != nil {
		return nil, err
	}
	if !admission.Admitted {
		switch admission.Reason {
		case models.ReasonNotAccepting:
			return nil, dErrors.Newf(dErrors.CodeNotAccepting,
				"activity %s is not accepting check-ins", activity.ID)
		default:
			return nil, dErrors.Newf(dErrors.CodeAtCapacity,
				"activity %s is at capacity (%d checked in)", activity.ID, admission.Current)
		}
	}

	// From here the gate holds a slot for us; every failure path below must
	// give it back.
	record, err := models.NewCheckedIn(id.NewRecordID(), activity, subject, operatorID, notes, now)
	if err != nil {
		l.compensate(ctx, activity.ID)
		return nil, err
	}

	if err := l.records.CreateCheckedIn(ctx, record); err != nil {
		l.compensate(ctx, activity.ID)
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Lost a duplicate race after the pre-check; surface the winner.
			if existing, findErr := l.records.FindActive(ctx, subject, activity); findErr == nil {
				return existing, dErrors.Newf(dErrors.CodeAlreadyCheckedIn,
					"subject %s is already checked into activity %s", subject.ID, activity.ID)
			}
			return nil, dErrors.Newf(dErrors.CodeAlreadyCheckedIn,
				"subject %s is already checked into activity %s", subject.ID, activity.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write attendance record")
	}
	return record, nil
}

// CheckOut transitions a record to CHECKED_OUT and releases its slot.
// Returns (false, nil) when the record is already in a terminal state:
// physical double-scans of an exit are expected, so repeat check-outs are a
// no-op rather than an error.
func (l *Ledger) CheckOut(ctx context.Context, recordID id.RecordID, operatorID id.OperatorID, notes string) (bool, error) {
	ctx, span := l.tracer.Start(ctx, "attendance.CheckOut",
		trace.WithAttributes(attribute.String("record.id", recordID.String())))
	defer span.End()

	if operatorID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "operator id is required")
	}
	now := requestcontext.Now(ctx)

	var alreadyTerminal bool
	record, err := l.records.Execute(ctx, recordID,
		func(r *models.AttendanceRecord) error {
			if r.Status.IsTerminal() {
				alreadyTerminal = true
				return dErrors.New(dErrors.CodeIllegalTransition, "record already terminal")
			}
			return r.CanTransitionTo(models.StatusCheckedOut)
		},
		func(r *models.AttendanceRecord) {
			r.ApplyCheckOut(operatorID, notes, now)
		},
	)
	if err != nil {
		if alreadyTerminal {
			return false, nil
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.Newf(dErrors.CodeNotFound, "record %s not found", recordID)
		}
		span.RecordError(err)
		return false, wrapTransitionErr(err)
	}

	if err := l.gate.Release(ctx, record.Activity.ID); err != nil {
		// The record is checked out either way; a failed decrement is healed
		// by the next reconciliation. Log it, do not unwind the check-out.
		l.logger.ErrorContext(ctx, "failed to release slot after check-out",
			"record_id", recordID,
			"activity_id", record.Activity.ID,
			"error", err,
		)
	}

	if l.metrics != nil {
		l.metrics.IncrementCheckOuts()
	}
	l.emit(ctx, notify.EventCheckedOut, record, operatorID)
	return true, nil
}

// UpdateStatus is the operator override: CHECKED_IN to NO_SHOW, CANCELLED, or
// CHECKED_OUT. Any other transition is illegal; terminal states are one-way.
// Moving an active record to a terminal state releases its slot.
func (l *Ledger) UpdateStatus(ctx context.Context, recordID id.RecordID, next models.Status, operatorID id.OperatorID, notes string) (bool, error) {
	if operatorID.IsNil() {
		return false, dErrors.New(dErrors.CodeBadRequest, "operator id is required")
	}
	if !next.IsTerminal() {
		return false, dErrors.Newf(dErrors.CodeIllegalTransition,
			"cannot move a record to %s by operator override", next)
	}
	now := requestcontext.Now(ctx)

	record, err := l.records.Execute(ctx, recordID,
		func(r *models.AttendanceRecord) error {
			return r.CanTransitionTo(next)
		},
		func(r *models.AttendanceRecord) {
			r.ApplyStatus(next, operatorID, notes, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.Newf(dErrors.CodeNotFound, "record %s not found", recordID)
		}
		return false, wrapTransitionErr(err)
	}

	if err := l.gate.Release(ctx, record.Activity.ID); err != nil {
		l.logger.ErrorContext(ctx, "failed to release slot after status override",
			"record_id", recordID,
			"activity_id", record.Activity.ID,
			"error", err,
		)
	}

	if l.metrics != nil {
		l.metrics.IncrementOverrides(string(next))
	}
	l.emit(ctx, notify.EventStatusChanged, record, operatorID)
	return true, nil
}

// IsCheckedIn reports whether the subject currently holds a CHECKED_IN record
// for the activity. UIs use it to choose between check-in and check-out
// affordances, and retrying callers use it after a timed-out attempt.
func (l *Ledger) IsCheckedIn(ctx context.Context, subject models.SubjectRef, activity models.ActivityRef) (bool, error) {
	_, err := l.records.FindActive(ctx, subject, activity)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query active record")
}

// compensate returns an admitted slot after a failed ledger write.
func (l *Ledger) compensate(ctx context.Context, activityID id.ActivityID) {
	if err := l.gate.Release(ctx, activityID); err != nil {
		l.logger.ErrorContext(ctx, "gate compensation failed; counter will heal on reconcile",
			"activity_id", activityID,
			"error", err,
		)
		return
	}
	if l.metrics != nil {
		l.metrics.IncrementCompensations()
	}
}

// emit dispatches a notification without letting delivery failures surface
// into the attendance operation.
func (l *Ledger) emit(ctx context.Context, eventType notify.EventType, record *models.AttendanceRecord, operatorID id.OperatorID) {
	if l.notifier == nil {
		return
	}
	event := notify.Event{
		Type:       eventType,
		RecordID:   record.ID,
		Activity:   record.Activity,
		Subject:    record.Subject,
		Status:     record.Status,
		OperatorID: operatorID,
		OccurredAt: requestcontext.Now(ctx),
	}
	if err := l.notifier.Emit(ctx, event); err != nil {
		l.logger.WarnContext(ctx, "failed to dispatch attendance event",
			"type", eventType,
			"record_id", record.ID,
			"error", err,
		)
	}
}

func (l *Ledger) countRejection(err error) {
	if l.metrics == nil {
		return
	}
	for _, code := range []dErrors.Code{
		dErrors.CodeNotFound,
		dErrors.CodeNotEligible,
		dErrors.CodeNotAccepting,
		dErrors.CodeAtCapacity,
		dErrors.CodeAlreadyCheckedIn,
	} {
		if dErrors.HasCode(err, code) {
			l.metrics.IncrementRejected(string(code))
			return
		}
	}
	l.metrics.IncrementRejected(string(dErrors.CodeInternal))
}

func wrapTransitionErr(err error) error {
	if dErrors.HasCode(err, dErrors.CodeIllegalTransition) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transition record")
}
