// Package handler exposes the attendance ledger over HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	activitymodels "rollcall/internal/activity/models"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	"rollcall/internal/platform/middleware"
	subjectmodels "rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

const defaultPageSize = 50

// Service defines the write-side ledger operations the handler depends on.
type Service interface {
	CheckIn(ctx context.Context, subject models.SubjectRef, activity models.ActivityRef, operatorID id.OperatorID, notes string) (*models.AttendanceRecord, error)
	CheckOut(ctx context.Context, recordID id.RecordID, operatorID id.OperatorID, notes string) (bool, error)
	UpdateStatus(ctx context.Context, recordID id.RecordID, next models.Status, operatorID id.OperatorID, notes string) (bool, error)
	IsCheckedIn(ctx context.Context, subject models.SubjectRef, activity models.ActivityRef) (bool, error)
}

// QueryService defines the read-side operations the handler depends on.
type QueryService interface {
	CurrentlyCheckedIn(ctx context.Context, activity models.ActivityRef) ([]*models.AttendanceRecord, error)
	HistoryPage(ctx context.Context, subject models.SubjectRef, window ports.TimeWindow, cursor *ports.Cursor, limit int) ([]*models.AttendanceRecord, *ports.Cursor, error)
	Stats(ctx context.Context, activity models.ActivityRef) (*models.ActivityStats, error)
	RecordByID(ctx context.Context, recordID id.RecordID) (*models.AttendanceRecord, error)
}

// Occupancy reports live headcounts, normally backed by the capacity gate.
type Occupancy interface {
	CurrentOccupancy(ctx context.Context, activityID id.ActivityID) (int, error)
}

// Handler handles attendance endpoints.
type Handler struct {
	logger    *slog.Logger
	ledger    Service
	query     QueryService
	occupancy Occupancy
}

// New creates a new attendance Handler.
func New(ledger Service, query QueryService, occupancy Occupancy, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		ledger:    ledger,
		query:     query,
		occupancy: occupancy,
	}
}

// Register registers the attendance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	ar := chi.NewRouter()
	ar.Use(middleware.Recovery(h.logger))
	ar.Use(middleware.RequestID)
	ar.Use(middleware.RequestTime)
	ar.Use(middleware.Logger(h.logger))
	ar.Use(middleware.Timeout(30 * time.Second))

	ar.Group(func(g chi.Router) {
		g.Use(middleware.RequireOperator)
		g.Post("/check-in", h.handleCheckIn)
		g.Post("/{recordID}/check-out", h.handleCheckOut)
		g.Post("/{recordID}/status", h.handleUpdateStatus)
	})

	ar.Get("/checked-in", h.handleCheckedIn)
	ar.Get("/history", h.handleHistory)
	ar.Get("/stats", h.handleStats)
	ar.Get("/is-checked-in", h.handleIsCheckedIn)
	ar.Get("/occupancy", h.handleOccupancy)
	ar.Get("/{recordID}", h.handleGetRecord)

	r.Mount("/attendance", ar)
}

type refPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type checkInRequest struct {
	Subject  refPayload `json:"subject"`
	Activity refPayload `json:"activity"`
	Notes    string     `json:"notes"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	subject, err := subjectRefFromPayload(req.Subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	activity, err := activityRefFromPayload(req.Activity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.ledger.CheckIn(ctx, subject, activity, requestcontext.OperatorID(ctx), req.Notes)
	if err != nil {
		// The duplicate case still carries the existing record so the caller
		// can render it.
		if dErrors.HasCode(err, dErrors.CodeAlreadyCheckedIn) && record != nil {
			httputil.WriteJSON(w, http.StatusOK, checkInResponse(record, false))
			return
		}
		h.logger.WarnContext(ctx, "check-in rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, checkInResponse(record, true))
}

func checkInResponse(record *models.AttendanceRecord, created bool) map[string]any {
	return map[string]any{
		"record":  record,
		"created": created,
	}
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid record id"))
		return
	}
	var req notesRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	changed, err := h.ledger.CheckOut(ctx, recordID, requestcontext.OperatorID(ctx), req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid record id"))
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	next := models.Status(strings.ToUpper(req.Status))

	changed, err := h.ledger.UpdateStatus(ctx, recordID, next, requestcontext.OperatorID(ctx), req.Notes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid record id"))
		return
	}
	record, err := h.query.RecordByID(r.Context(), recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleCheckedIn(w http.ResponseWriter, r *http.Request) {
	activity, err := activityRefFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.query.CurrentlyCheckedIn(r.Context(), activity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectRefFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cursor, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid limit"))
			return
		}
	}

	records, next, err := h.query.HistoryPage(r.Context(), subject, window, cursor, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := map[string]any{"records": records}
	if next != nil {
		resp["next_cursor"] = encodeCursor(next)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	activity, err := activityRefFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.query.Stats(r.Context(), activity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleIsCheckedIn(w http.ResponseWriter, r *http.Request) {
	subject, err := subjectRefFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	activity, err := activityRefFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	checkedIn, err := h.ledger.IsCheckedIn(r.Context(), subject, activity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"checked_in": checkedIn})
}

func (h *Handler) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	activityID, err := id.ParseActivityID(r.URL.Query().Get("activity_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid activity_id"))
		return
	}
	current, err := h.occupancy.CurrentOccupancy(r.Context(), activityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"activity_id": activityID,
		"current":     current,
	})
}

func subjectRefFromPayload(p refPayload) (models.SubjectRef, error) {
	subjectID, err := id.ParseSubjectID(p.ID)
	if err != nil {
		return models.SubjectRef{}, dErrors.New(dErrors.CodeBadRequest, "invalid subject id")
	}
	return models.NewSubjectRef(subjectmodels.Kind(strings.ToUpper(p.Kind)), subjectID)
}

func activityRefFromPayload(p refPayload) (models.ActivityRef, error) {
	activityID, err := id.ParseActivityID(p.ID)
	if err != nil {
		return models.ActivityRef{}, dErrors.New(dErrors.CodeBadRequest, "invalid activity id")
	}
	return models.NewActivityRef(activitymodels.Kind(strings.ToUpper(p.Kind)), activityID)
}

func subjectRefFromQuery(r *http.Request) (models.SubjectRef, error) {
	return subjectRefFromPayload(refPayload{
		Kind: r.URL.Query().Get("subject_kind"),
		ID:   r.URL.Query().Get("subject_id"),
	})
}

func activityRefFromQuery(r *http.Request) (models.ActivityRef, error) {
	return activityRefFromPayload(refPayload{
		Kind: r.URL.Query().Get("activity_kind"),
		ID:   r.URL.Query().Get("activity_id"),
	})
}

func windowFromQuery(r *http.Request) (ports.TimeWindow, error) {
	var window ports.TimeWindow
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, dErrors.New(dErrors.CodeBadRequest, "invalid from timestamp")
		}
		window.From = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return window, dErrors.New(dErrors.CodeBadRequest, "invalid to timestamp")
		}
		window.To = &t
	}
	return window, nil
}

// Cursors are opaque to clients: base64 over "RFC3339Nano|record id".
func encodeCursor(c *ports.Cursor) string {
	raw := c.CheckInTime.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(raw string) (*ports.Cursor, error) {
	if raw == "" {
		return nil, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid cursor")
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid cursor")
	}
	recordID, err := id.ParseRecordID(parts[1])
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid cursor")
	}
	return &ports.Cursor{CheckInTime: ts, ID: recordID}, nil
}
