// Package query is the read side of the attendance module: live occupancy
// lists, per-subject history, and per-activity aggregates. It never mutates
// state and never takes the ledger's write locks, so reads are eventually
// consistent with in-flight check-ins.
package query

import (
	"context"
	"errors"
	"fmt"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
)

// Service aggregates over the record store.
type Service struct {
	records ports.RecordStore
}

func New(records ports.RecordStore) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	return &Service{records: records}, nil
}

// CurrentlyCheckedIn lists the activity's CHECKED_IN records, oldest first.
func (s *Service) CurrentlyCheckedIn(ctx context.Context, activity models.ActivityRef) ([]*models.AttendanceRecord, error) {
	status := models.StatusCheckedIn
	records, err := s.records.ListByActivity(ctx, activity, &status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list checked-in records")
	}
	return records, nil
}

// History returns the subject's records inside the window, newest first.
func (s *Service) History(ctx context.Context, subject models.SubjectRef, window ports.TimeWindow) ([]*models.AttendanceRecord, error) {
	if err := validateWindow(window); err != nil {
		return nil, err
	}
	records, err := s.records.ListBySubject(ctx, subject, window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list history")
	}
	return records, nil
}

// HistoryPage is the cursor-paged form of History. Each call restarts cleanly
// from the supplied cursor; a nil returned cursor means the listing is done.
func (s *Service) HistoryPage(ctx context.Context, subject models.SubjectRef, window ports.TimeWindow, cursor *ports.Cursor, limit int) ([]*models.AttendanceRecord, *ports.Cursor, error) {
	if err := validateWindow(window); err != nil {
		return nil, nil, err
	}
	records, next, err := s.records.ListBySubjectPage(ctx, subject, window, cursor, limit)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to page history")
	}
	return records, next, nil
}

// Stats computes the single-pass aggregate for one activity.
func (s *Service) Stats(ctx context.Context, activity models.ActivityRef) (*models.ActivityStats, error) {
	stats, err := s.records.Aggregate(ctx, activity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate stats")
	}
	return stats, nil
}

// RecordByID fetches a single record.
func (s *Service) RecordByID(ctx context.Context, recordID id.RecordID) (*models.AttendanceRecord, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "record %s not found", recordID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return record, nil
}

func validateWindow(window ports.TimeWindow) error {
	if window.From != nil && window.To != nil && window.To.Before(*window.From) {
		return dErrors.New(dErrors.CodeBadRequest, "history window end precedes start")
	}
	return nil
}
