package query

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	activitymodels "rollcall/internal/activity/models"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	recordstore "rollcall/internal/attendance/store/record"
	subjectmodels "rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// =============================================================================
// Query Service Test Suite
// =============================================================================

type QuerySuite struct {
	suite.Suite
	store    *recordstore.InMemory
	service  *Service
	activity models.ActivityRef
	subject  models.SubjectRef
	operator id.OperatorID
	now      time.Time
}

func TestQuerySuite(t *testing.T) {
	suite.Run(t, new(QuerySuite))
}

func (s *QuerySuite) SetupTest() {
	s.store = recordstore.NewInMemory()

	var err error
	s.service, err = New(s.store)
	s.Require().NoError(err)

	s.activity, err = models.NewActivityRef(activitymodels.KindEvent, id.ActivityID(uuid.New()))
	s.Require().NoError(err)
	s.subject, err = models.NewSubjectRef(subjectmodels.KindUser, id.SubjectID(uuid.New()))
	s.Require().NoError(err)
	s.operator = id.OperatorID(uuid.New())
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
}

func (s *QuerySuite) checkIn(subject models.SubjectRef, activity models.ActivityRef, at time.Time) *models.AttendanceRecord {
	record, err := models.NewCheckedIn(id.NewRecordID(), activity, subject, s.operator, "", at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateCheckedIn(context.Background(), record))
	return record
}

func (s *QuerySuite) transition(record *models.AttendanceRecord, next models.Status) {
	_, err := s.store.Execute(context.Background(), record.ID,
		func(r *models.AttendanceRecord) error { return r.CanTransitionTo(next) },
		func(r *models.AttendanceRecord) { r.ApplyStatus(next, r.CheckedInBy, "", s.now.Add(time.Hour)) },
	)
	s.Require().NoError(err)
}

func (s *QuerySuite) TestCurrentlyCheckedIn() {
	ctx := context.Background()

	active := s.checkIn(s.subject, s.activity, s.now)

	otherSubject, err := models.NewSubjectRef(subjectmodels.KindUser, id.SubjectID(uuid.New()))
	s.Require().NoError(err)
	done := s.checkIn(otherSubject, s.activity, s.now.Add(time.Minute))
	s.transition(done, models.StatusCheckedOut)

	records, err := s.service.CurrentlyCheckedIn(ctx, s.activity)
	s.NoError(err)
	s.Require().Len(records, 1)
	s.Equal(active.ID, records[0].ID)
}

func (s *QuerySuite) TestHistory() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		activity, err := models.NewActivityRef(activitymodels.KindEvent, id.ActivityID(uuid.New()))
		s.Require().NoError(err)
		s.checkIn(s.subject, activity, s.now.Add(time.Duration(i)*time.Hour))
	}

	s.Run("returns newest first", func() {
		records, err := s.service.History(ctx, s.subject, ports.TimeWindow{})
		s.NoError(err)
		s.Require().Len(records, 3)
		s.True(records[0].CheckInTime.After(records[1].CheckInTime))
		s.True(records[1].CheckInTime.After(records[2].CheckInTime))
	})

	s.Run("window filters by check-in time", func() {
		from := s.now.Add(30 * time.Minute)
		to := s.now.Add(90 * time.Minute)
		records, err := s.service.History(ctx, s.subject, ports.TimeWindow{From: &from, To: &to})
		s.NoError(err)
		s.Len(records, 1)
	})

	s.Run("inverted window is rejected", func() {
		from := s.now.Add(time.Hour)
		to := s.now
		_, err := s.service.History(ctx, s.subject, ports.TimeWindow{From: &from, To: &to})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *QuerySuite) TestHistoryPage() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		activity, err := models.NewActivityRef(activitymodels.KindEvent, id.ActivityID(uuid.New()))
		s.Require().NoError(err)
		s.checkIn(s.subject, activity, s.now.Add(time.Duration(i)*time.Minute))
	}

	page, next, err := s.service.HistoryPage(ctx, s.subject, ports.TimeWindow{}, nil, 3)
	s.Require().NoError(err)
	s.Len(page, 3)
	s.Require().NotNil(next)

	rest, last, err := s.service.HistoryPage(ctx, s.subject, ports.TimeWindow{}, next, 3)
	s.Require().NoError(err)
	s.Len(rest, 2)
	s.Nil(last)

	// No overlap between pages.
	seen := make(map[id.RecordID]bool)
	for _, record := range append(page, rest...) {
		s.False(seen[record.ID])
		seen[record.ID] = true
	}
}

func (s *QuerySuite) TestStats() {
	ctx := context.Background()

	subjects := make([]models.SubjectRef, 4)
	for i := range subjects {
		ref, err := models.NewSubjectRef(subjectmodels.KindUser, id.SubjectID(uuid.New()))
		s.Require().NoError(err)
		subjects[i] = ref
	}

	s.checkIn(subjects[0], s.activity, s.now)
	s.transition(s.checkIn(subjects[1], s.activity, s.now), models.StatusCheckedOut)
	s.transition(s.checkIn(subjects[2], s.activity, s.now), models.StatusNoShow)
	s.transition(s.checkIn(subjects[3], s.activity, s.now), models.StatusCancelled)

	stats, err := s.service.Stats(ctx, s.activity)
	s.NoError(err)
	s.Equal(4, stats.TotalAttendees)
	s.Equal(1, stats.CurrentlyCheckedIn)
	s.Equal(1, stats.CheckedOut)
	s.Equal(1, stats.NoShows)
	s.Equal(1, stats.Cancellations)
}

func (s *QuerySuite) TestRecordByID() {
	ctx := context.Background()

	s.Run("unknown record returns NotFound", func() {
		_, err := s.service.RecordByID(ctx, id.NewRecordID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("returns the record", func() {
		record := s.checkIn(s.subject, s.activity, s.now)
		found, err := s.service.RecordByID(ctx, record.ID)
		s.NoError(err)
		s.Equal(record.ID, found.ID)
	})
}
