package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	activitymodels "rollcall/internal/activity/models"
	activityservice "rollcall/internal/activity/service"
	activitystore "rollcall/internal/activity/store"
	"rollcall/internal/attendance/gate"
	"rollcall/internal/attendance/query"
	attendanceservice "rollcall/internal/attendance/service"
	counterstore "rollcall/internal/attendance/store/counter"
	recordstore "rollcall/internal/attendance/store/record"
	"rollcall/internal/platform/middleware"
	subjectmodels "rollcall/internal/subject/models"
	subjectservice "rollcall/internal/subject/service"
	subjectstore "rollcall/internal/subject/store"
	id "rollcall/pkg/domain"
	)

// =============================================================================
// Attendance Handler Test Suite
// =============================================================================
// HTTP-level tests over the real in-memory stack: routing, request parsing,
// the operator header contract, and error envelope mapping.

type HandlerSuite struct {
	suite.Suite
	router     chi.Router
	activities *activityservice.Registry
	subjects   *subjectservice.Registry
	operator   id.OperatorID
	now        time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.activities, err = activityservice.New(activitystore.NewInMemory())
	s.Require().NoError(err)
	s.subjects, err = subjectservice.New(subjectstore.NewInMemory())
	s.Require().NoError(err)

	records := recordstore.NewInMemory()
	admissionGate, err := gate.New(counterstore.NewInMemory(), s.activities)
	s.Require().NoError(err)
	ledger, err := attendanceservice.New(records, admissionGate, s.activities, s.subjects)
	s.Require().NoError(err)
	queries, err := query.New(records)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(ledger, queries, admissionGate, logger).Register(s.router)

	s.operator = id.OperatorID(uuid.New())
	s.now = time.Now().UTC()
}

func (s *HandlerSuite) registerActivity(capacity *int) *activitymodels.Activity {
	activity, err := activitymodels.NewActivity(id.ActivityID(uuid.New()), activitymodels.KindEvent, "evening event", s.now)
	s.Require().NoError(err)
	activity.Capacity = capacity
	s.Require().NoError(s.activities.Register(s.T().Context(), activity))
	return activity
}

func (s *HandlerSuite) registerSubject() *subjectmodels.Subject {
	subject, err := subjectmodels.NewSubject(id.SubjectID(uuid.New()), subjectmodels.KindUser, "visitor", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.subjects.Register(s.T().Context(), subject))
	return subject
}

func (s *HandlerSuite) do(method, path string, body any, operator bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if operator {
		req.Header.Set(middleware.OperatorHeader, s.operator.String())
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) checkInBody(subject *subjectmodels.Subject, activity *activitymodels.Activity) map[string]any {
	return map[string]any{
		"subject":  map[string]string{"kind": string(subject.Kind), "id": subject.ID.String()},
		"activity": map[string]string{"kind": string(activity.Kind), "id": activity.ID.String()},
	}
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func (s *HandlerSuite) TestCheckIn() {
	s.Run("creates a record and returns 201", func() {
		activity := s.registerActivity(nil)
		subject := s.registerSubject()

		rec := s.do(http.MethodPost, "/attendance/check-in", s.checkInBody(subject, activity), true)
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			Created bool `json:"created"`
			Record  struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"record"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp.Created)
		s.Equal("CHECKED_IN", resp.Record.Status)
		s.NotEmpty(resp.Record.ID)
	})

	s.Run("duplicate check-in returns 200 with the existing record", func() {
		activity := s.registerActivity(nil)
		subject := s.registerSubject()
		body := s.checkInBody(subject, activity)

		rec := s.do(http.MethodPost, "/attendance/check-in", body, true)
		s.Require().Equal(http.StatusCreated, rec.Code)

		rec = s.do(http.MethodPost, "/attendance/check-in", body, true)
		s.Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Created bool `json:"created"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.False(resp.Created)
	})

	s.Run("missing operator header returns 400", func() {
		activity := s.registerActivity(nil)
		subject := s.registerSubject()

		rec := s.do(http.MethodPost, "/attendance/check-in", s.checkInBody(subject, activity), false)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("bad_request", s.errorCode(rec))
	})

	s.Run("full activity returns 409 AT_CAPACITY", func() {
		capacity := 1
		activity := s.registerActivity(&capacity)

		rec := s.do(http.MethodPost, "/attendance/check-in", s.checkInBody(s.registerSubject(), activity), true)
		s.Require().Equal(http.StatusCreated, rec.Code)

		rec = s.do(http.MethodPost, "/attendance/check-in", s.checkInBody(s.registerSubject(), activity), true)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("at_capacity", s.errorCode(rec))
	})

	s.Run("unknown activity returns 404", func() {
		subject := s.registerSubject()
		body := map[string]any{
			"subject":  map[string]string{"kind": "USER", "id": subject.ID.String()},
			"activity": map[string]string{"kind": "EVENT", "id": uuid.NewString()},
		}
		rec := s.do(http.MethodPost, "/attendance/check-in", body, true)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("not_found", s.errorCode(rec))
	})

	s.Run("malformed body returns 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/attendance/check-in", bytes.NewBufferString("{"))
		req.Header.Set(middleware.OperatorHeader, s.operator.String())
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestCheckOutFlow() {
	activity := s.registerActivity(nil)
	subject := s.registerSubject()

	rec := s.do(http.MethodPost, "/attendance/check-in", s.checkInBody(subject, activity), true)
	s.Require().Equal(http.StatusCreated, rec.Code)

	var created struct {
		Record struct {
			ID string `json:"id"`
		} `json:"record"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))

	s.Run("check-out flips the record and reports changed", func() {
		rec := s.do(http.MethodPost, "/attendance/"+created.Record.ID+"/check-out", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp map[string]bool
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp["changed"])
	})

	s.Run("second check-out reports unchanged", func() {
		rec := s.do(http.MethodPost, "/attendance/"+created.Record.ID+"/check-out", nil, true)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp map[string]bool
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.False(resp["changed"])
	})

	s.Run("status override after terminal returns 422", func() {
		rec := s.do(http.MethodPost, "/attendance/"+created.Record.ID+"/status",
			map[string]string{"status": "NO_SHOW"}, true)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Equal("illegal_transition", s.errorCode(rec))
	})
}

func (s *HandlerSuite) TestQueries() {
	activity := s.registerActivity(nil)
	subject := s.registerSubject()

	rec := s.do(http.MethodPost, "/attendance/check-in", s.checkInBody(subject, activity), true)
	s.Require().Equal(http.StatusCreated, rec.Code)

	s.Run("checked-in listing", func() {
		path := fmt.Sprintf("/attendance/checked-in?activity_kind=EVENT&activity_id=%s", activity.ID)
		rec := s.do(http.MethodGet, path, nil, false)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Records []json.RawMessage `json:"records"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Len(resp.Records, 1)
	})

	s.Run("stats", func() {
		path := fmt.Sprintf("/attendance/stats?activity_kind=EVENT&activity_id=%s", activity.ID)
		rec := s.do(http.MethodGet, path, nil, false)
		s.Require().Equal(http.StatusOK, rec.Code)

		var stats struct {
			TotalAttendees     int `json:"total_attendees"`
			CurrentlyCheckedIn int `json:"currently_checked_in"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &stats))
		s.Equal(1, stats.TotalAttendees)
		s.Equal(1, stats.CurrentlyCheckedIn)
	})

	s.Run("occupancy", func() {
		rec := s.do(http.MethodGet, "/attendance/occupancy?activity_id="+activity.ID.String(), nil, false)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Current int `json:"current"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(1, resp.Current)
	})

	s.Run("is-checked-in", func() {
		path := fmt.Sprintf("/attendance/is-checked-in?subject_kind=USER&subject_id=%s&activity_kind=EVENT&activity_id=%s",
			subject.ID, activity.ID)
		rec := s.do(http.MethodGet, path, nil, false)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp map[string]bool
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp["checked_in"])
	})

	s.Run("history pages through records", func() {
		path := fmt.Sprintf("/attendance/history?subject_kind=USER&subject_id=%s&limit=10", subject.ID)
		rec := s.do(http.MethodGet, path, nil, false)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Records []json.RawMessage `json:"records"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Len(resp.Records, 1)
	})

	s.Run("invalid cursor returns 400", func() {
		path := fmt.Sprintf("/attendance/history?subject_kind=USER&subject_id=%s&cursor=%%21%%21", subject.ID)
		rec := s.do(http.MethodGet, path, nil, false)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
