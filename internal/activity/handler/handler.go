// Package handler exposes the activity registry over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rollcall/internal/activity/models"
	"rollcall/internal/platform/middleware"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the registry operations the handler depends on.
type Service interface {
	Register(ctx context.Context, activity *models.Activity) error
	Resolve(ctx context.Context, activityID id.ActivityID) (*models.Activity, error)
	List(ctx context.Context) ([]*models.Activity, error)
}

// Handler handles activity registry endpoints.
type Handler struct {
	logger   *slog.Logger
	registry Service
}

// New creates a new activity Handler.
func New(registry Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// Register registers the activity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	ar := chi.NewRouter()
	ar.Use(middleware.Recovery(h.logger))
	ar.Use(middleware.RequestID)
	ar.Use(middleware.RequestTime)
	ar.Use(middleware.Logger(h.logger))
	ar.Use(middleware.Timeout(10 * time.Second))

	ar.With(middleware.RequireOperator).Post("/", h.handleRegister)
	ar.Get("/", h.handleList)
	ar.Get("/{activityID}", h.handleGet)

	r.Mount("/activities", ar)
}

type registerRequest struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	Name        string           `json:"name"`
	Capacity    *int             `json:"capacity"`
	AgeRange    *models.AgeRange `json:"age_range"`
	Accepting   *bool            `json:"accepting_check_ins"`
	WindowStart *time.Time       `json:"window_start"`
	WindowEnd   *time.Time       `json:"window_end"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	activityID := id.ActivityID(uuid.New())
	if req.ID != "" {
		parsed, err := id.ParseActivityID(req.ID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid activity id"))
			return
		}
		activityID = parsed
	}

	activity, err := models.NewActivity(activityID, models.Kind(strings.ToUpper(req.Kind)), req.Name, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Capacity != nil {
		if activity, err = activity.WithCapacity(*req.Capacity); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if req.AgeRange != nil {
		if activity, err = activity.WithAgeRange(req.AgeRange.Min, req.AgeRange.Max); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if req.WindowStart != nil || req.WindowEnd != nil {
		if req.WindowStart == nil || req.WindowEnd == nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "window_start and window_end must be set together"))
			return
		}
		if activity, err = activity.WithWindow(*req.WindowStart, *req.WindowEnd); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if req.Accepting != nil {
		activity.AcceptingCheckIn = *req.Accepting
	}

	if err := h.registry.Register(ctx, activity); err != nil {
		h.logger.ErrorContext(ctx, "activity registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, activity)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	activityID, err := id.ParseActivityID(chi.URLParam(r, "activityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid activity id"))
		return
	}
	activity, err := h.registry.Resolve(r.Context(), activityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, activity)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	activities, err := h.registry.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"activities": activities})
}
