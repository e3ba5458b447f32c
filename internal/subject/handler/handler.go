// Package handler exposes the subject registry over HTTP.
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

	"rollcall/internal/platform/middleware"
	"rollcall/internal/subject/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Service defines the registry operations the handler depends on.
type Service interface {
	Register(ctx context.Context, subject *models.Subject) error
	Resolve(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)
}

// Handler handles subject registry endpoints.
type Handler struct {
	logger   *slog.Logger
	registry Service
}

// New creates a new subject Handler.
func New(registry Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// Register registers the subject routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	sr := chi.NewRouter()
	sr.Use(middleware.Recovery(h.logger))
	sr.Use(middleware.RequestID)
	sr.Use(middleware.RequestTime)
	sr.Use(middleware.Logger(h.logger))
	sr.Use(middleware.Timeout(10 * time.Second))

	sr.With(middleware.RequireOperator).Post("/", h.handleRegister)
	sr.Get("/{subjectID}", h.handleGet)

	r.Mount("/subjects", sr)
}

type registerRequest struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Name        string     `json:"name"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	subjectID := id.SubjectID(uuid.New())
	if req.ID != "" {
		parsed, err := id.ParseSubjectID(req.ID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid subject id"))
			return
		}
		subjectID = parsed
	}

	subject, err := models.NewSubject(subjectID, models.Kind(strings.ToUpper(req.Kind)), req.Name, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.DateOfBirth != nil {
		subject = subject.WithDateOfBirth(*req.DateOfBirth)
	}

	if err := h.registry.Register(ctx, subject); err != nil {
		h.logger.ErrorContext(ctx, "subject registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, subject)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid subject id"))
		return
	}
	subject, err := h.registry.Resolve(r.Context(), subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, subject)
}
