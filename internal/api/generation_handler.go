package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/framecast/render-api/internal/api/shared"
	"github.com/framecast/render-api/internal/artifact"
	"github.com/framecast/render-api/internal/domain"
	"github.com/framecast/render-api/internal/preset"
	"github.com/framecast/render-api/internal/store"
	"github.com/framecast/render-api/internal/task"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

// TaskSubmitter is the scheduler surface the handler needs. Kept narrow so
// tests can substitute a stub.
type TaskSubmitter interface {
	Submit(req domain.GenerationRequest) (uuid.UUID, error)
	Cancel(id uuid.UUID) error
}

// GenerationHandler handles generation-related HTTP requests.
type GenerationHandler struct {
	scheduler TaskSubmitter
	taskStore store.TaskStore
	artifacts *artifact.Resolver
	logger    *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(
	scheduler TaskSubmitter,
	taskStore store.TaskStore,
	artifacts *artifact.Resolver,
	logger *slog.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		scheduler: scheduler,
		taskStore: taskStore,
		artifacts: artifacts,
		logger:    logger.With("component", "generation_handler"),
	}
}

// Generate handles POST /api/v1/generate requests. It admits the task and
// returns 202 immediately; rendering happens asynchronously.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: prompt is required")
		return
	}

	id, err := h.scheduler.Submit(req.toDomain())
	if err != nil {
		var vErr *preset.ValidationError
		switch {
		case errors.As(err, &vErr):
			shared.RespondWithError(w, r, http.StatusBadRequest,
				"Validation error: "+vErr.Field+" "+vErr.Message)
		case errors.Is(err, task.ErrQueueFull):
			shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests,
				"Generation queue is full, try again later", err)
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to create generation task", err)
		}
		return
	}

	created, err := h.taskStore.Get(id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load created task", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, GenerateResponse{
		TaskID:    id.String(),
		State:     string(created.State),
		CreatedAt: created.CreatedAt,
	})
}

// Status handles GET /api/v1/status/{taskID} requests.
func (h *GenerationHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDParam(w, r)
	if !ok {
		return
	}

	taskSnapshot, err := h.taskStore.Get(id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load task", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToStatusResponse(taskSnapshot))
}

// Download handles GET /api/v1/download/{taskID} requests, serving the
// artifact file of a completed task.
func (h *GenerationHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDParam(w, r)
	if !ok {
		return
	}

	loc, err := h.artifacts.Resolve(id)
	if err != nil {
		switch {
		case store.IsNotFoundError(err):
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		case errors.Is(err, artifact.ErrArtifactNotReady):
			shared.RespondWithError(w, r, http.StatusConflict, "Artifact not ready")
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to resolve artifact", err)
		}
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+loc.Ref+`"`)
	http.ServeFile(w, r, loc.Path)
}

// CancelTask handles POST /api/v1/tasks/{taskID}/cancel requests.
func (h *GenerationHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskIDParam(w, r)
	if !ok {
		return
	}

	if err := h.scheduler.Cancel(id); err != nil {
		switch {
		case store.IsNotFoundError(err):
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		case errors.Is(err, store.ErrInvalidTransition):
			shared.RespondWithError(w, r, http.StatusConflict, "Task already finished")
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to cancel task", err)
		}
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]string{
		"task_id": id.String(),
		"status":  "cancellation_requested",
	})
}

// Health handles GET /health requests.
func (h *GenerationHandler) Health(w http.ResponseWriter, r *http.Request) {
	profiles := preset.Profiles()
	sort.Strings(profiles)
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:            "healthy",
		Version:           Version,
		AvailableProfiles: profiles,
	})
}

// taskIDParam extracts and parses the taskID route parameter, replying 400
// on malformed ids.
func (h *GenerationHandler) taskIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "taskID")
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}
