package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	activitymodels "rollcall/internal/activity/models"
	"rollcall/internal/attendance/mocks"
	"rollcall/internal/attendance/models"
	counterstore "rollcall/internal/attendance/store/counter"
	recordstore "rollcall/internal/attendance/store/record"
	subjectmodels "rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
)

// =============================================================================
// Capacity Gate Test Suite
// =============================================================================
// The gate carries the headline guarantee: admitted check-ins never exceed
// capacity, under any interleaving. The concurrency test here is the property
// check; the rest covers the accepting/window policy around the counter.

type GateSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	activities *mocks.MockActivityRegistry
	counters   *counterstore.InMemory
	gate       *Gate
	now        time.Time
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.activities = mocks.NewMockActivityRegistry(s.ctrl)
	s.counters = counterstore.NewInMemory()
	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	var err error
	s.gate, err = New(s.counters, s.activities)
	s.Require().NoError(err)
}

func (s *GateSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *GateSuite) activity(capacity *int) *activitymodels.Activity {
	activity, err := activitymodels.NewActivity(id.ActivityID(uuid.New()), activitymodels.KindEvent, "morning event", s.now)
	s.Require().NoError(err)
	activity.Capacity = capacity
	return activity
}

func (s *GateSuite) TestNew() {
	s.Run("nil counter store returns error", func() {
		_, err := New(nil, s.activities)
		s.Error(err)
	})

	s.Run("nil activity registry returns error", func() {
		_, err := New(s.counters, nil)
		s.Error(err)
	})
}

// =============================================================================
// TryAdmit Tests
// =============================================================================

func (s *GateSuite) TestTryAdmit() {
	s.Run("admits below capacity", func() {
		capacity := 2
		activity := s.activity(&capacity)
		s.activities.EXPECT().Resolve(gomock.Any(), activity.ID).Return(activity, nil).AnyTimes()

		admission, err := s.gate.TryAdmit(s.ctx(), activity.ID)
		s.NoError(err)
		s.True(admission.Admitted)
		s.Equal(1, admission.Current)
	})

	s.Run("denies at capacity with AT_CAPACITY", func() {
		capacity := 1
		activity := s.activity(&capacity)
		s.activities.EXPECT().Resolve(gomock.Any(), activity.ID).Return(activity, nil).AnyTimes()

		admission, err := s.gate.TryAdmit(s.ctx(), activity.ID)
		s.Require().NoError(err)
		s.Require().True(admission.Admitted)

		admission, err = s.gate.TryAdmit(s.ctx(), activity.ID)
		s.NoError(err)
		s.False(admission.Admitted)
		s.Equal(models.ReasonAtCapacity, admission.Reason)
		s.Equal(1, admission.Current)
	})

	s.Run("unlimited activity always admits", func() {
		activity := s.activity(nil)
		s.activities.EXPECT().Resolve(gomock.Any(), activity.ID).Return(activity, nil).AnyTimes()

		for i := 1; i <= 25; i++ {
			admission, err := s.gate.TryAdmit(s.ctx(), activity.ID)
			s.Require().NoError(err)
			s.True(admission.Admitted)
			s.Equal(i, admission.Current)
		}
	})

	s.Run("closed activity denies with NOT_ACCEPTING", func() {
		activity := s.activity(nil)
		activity.AcceptingCheckIn = false
		s.activities.EXPECT().Resolve(gomock.Any(), activity.ID).Return(activity, nil)

		admission, err := s.gate.TryAdmit(s.ctx(), activity.ID)
		s.NoError(err)
		s.False(admission.Admitted)
		s.Equal(models.ReasonNotAccepting, admission.Reason)
	})

	s.Run("outside the window denies with NOT_ACCEPTING", func() {
		activity := s.activity(nil)
		var err error
		activity, err = activity.WithWindow(s.now.Add(time.Hour), s.now.Add(2*time.Hour))
		s.Require().NoError(err)
		s.activities.EXPECT().Resolve(gomock.Any(), activity.ID).Return(activity, nil)

		admission, err := s.gate.TryAdmit(s.ctx(), activity.ID)
		s.NoError(err)
		s.False(admission.Admitted)
		s.Equal(models.ReasonNotAccepting, admission.Reason)
	})

	s.Run("NOT_ACCEPTING does not consume a slot", func() {
		capacity := 5
		activity := s.activity(&capacity)
		activity.AcceptingCheckIn = false
		s.activities.EXPECT().Resolve(gomock.Any(), activity.ID).Return(activity, nil)

		admission, err := s.gate.TryAdmit(s.ctx(), activity.ID)
		s.Require().NoError(err)
		s.Require().False(admission.Admitted)

		current, err := s.gate.CurrentOccupancy(s.ctx(), activity.ID)
		s.NoError(err)
		s.Equal(0, current)
	})
}

// TestConcurrentAdmits is the capacity property: with capacity k and many
// concurrent attempts, exactly k are admitted and the counter ends at k.
func (s *GateSuite) TestConcurrentAdmits() {
	const workers = 100
	capacity := 10
	activity := s.activity(&capacity)
	s.activities.EXPECT().Resolve(gomock.Any(), activity.ID).Return(activity, nil).AnyTimes()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admission, err := s.gate.TryAdmit(s.ctx(), activity.ID)
			s.NoError(err)
			if admission.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			} else {
				s.Equal(models.ReasonAtCapacity, admission.Reason)
			}
		}()
	}
	wg.Wait()

	s.Equal(capacity, admitted)
	current, err := s.gate.CurrentOccupancy(s.ctx(), activity.ID)
	s.NoError(err)
	s.Equal(capacity, current)
}

// =============================================================================
// Release / Reconcile Tests
// =============================================================================

func (s *GateSuite) TestRelease() {
	capacity := 1
	activity := s.activity(&capacity)
	s.activities.EXPECT().Resolve(gomock.Any(), activity.ID).Return(activity, nil).AnyTimes()

	admission, err := s.gate.TryAdmit(s.ctx(), activity.ID)
	s.Require().NoError(err)
	s.Require().True(admission.Admitted)

	s.Require().NoError(s.gate.Release(s.ctx(), activity.ID))

	admission, err = s.gate.TryAdmit(s.ctx(), activity.ID)
	s.NoError(err)
	s.True(admission.Admitted)
}

func (s *GateSuite) TestReconcile() {
	records := recordstore.NewInMemory()

	activityRef, err := models.NewActivityRef(activitymodels.KindEvent, id.ActivityID(uuid.New()))
	s.Require().NoError(err)
	operator := id.OperatorID(uuid.New())
	for i := 0; i < 3; i++ {
		subjectRef, err := models.NewSubjectRef(subjectmodels.KindUser, id.SubjectID(uuid.New()))
		s.Require().NoError(err)
		record, err := models.NewCheckedIn(id.NewRecordID(), activityRef, subjectRef, operator, "", s.now)
		s.Require().NoError(err)
		s.Require().NoError(records.CreateCheckedIn(s.ctx(), record))
	}

	// Simulate drift: the counter claims more than the ledger holds.
	s.Require().NoError(s.counters.Reset(s.ctx(), activityRef.ID, 9))

	s.Require().NoError(s.gate.Reconcile(s.ctx(), records))

	current, err := s.gate.CurrentOccupancy(s.ctx(), activityRef.ID)
	s.NoError(err)
	s.Equal(3, current)
}

func (s *GateSuite) TestReconcileZeroesStaleCounters() {
	records := recordstore.NewInMemory()

	// Crash between a successful admit and the first ledger write: the
	// counter holds a slot the ledger never recorded. With capacity 1 that
	// slot would otherwise be lost for good.
	activityID := id.ActivityID(uuid.New())
	s.Require().NoError(s.counters.Reset(s.ctx(), activityID, 1))

	s.Require().NoError(s.gate.Reconcile(s.ctx(), records))

	current, err := s.gate.CurrentOccupancy(s.ctx(), activityID)
	s.NoError(err)
	s.Equal(0, current)
}
