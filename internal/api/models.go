package api

import (
	"time"

	"github.com/framecast/render-api/internal/domain"
)

// GenerateRequest represents the request body for submitting a generation
// task. Optional overrides are pointers so absent and zero are
// distinguishable.
type GenerateRequest struct {
	Prompt          string   `json:"prompt"            validate:"required,min=1"`
	NegativePrompt  string   `json:"negative_prompt,omitempty"`
	Profile         string   `json:"profile,omitempty"`
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	FPS             *int     `json:"fps,omitempty"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"`
	Seed            *int64   `json:"seed,omitempty"`
	InferenceSteps  *int     `json:"inference_steps,omitempty"`
	GuidanceScale   *float64 `json:"guidance_scale,omitempty"`
}

// toDomain maps the DTO onto the domain request type.
func (r *GenerateRequest) toDomain() domain.GenerationRequest {
	return domain.GenerationRequest{
		Prompt:          r.Prompt,
		NegativePrompt:  r.NegativePrompt,
		Profile:         r.Profile,
		Width:           r.Width,
		Height:          r.Height,
		FPS:             r.FPS,
		DurationSeconds: r.DurationSeconds,
		Seed:            r.Seed,
		InferenceSteps:  r.InferenceSteps,
		GuidanceScale:   r.GuidanceScale,
	}
}

// GenerateResponse is returned when a task has been admitted.
type GenerateResponse struct {
	TaskID    string    `json:"task_id"`
	State     string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusResponse is the polling payload for a task. Fields beyond the
// always-present ones are populated per state: progress only while
// processing, artifact_ref only when completed, error_detail only when
// failed.
type StatusResponse struct {
	TaskID      string                `json:"task_id"`
	State       string                `json:"status"`
	Progress    *int                  `json:"progress,omitempty"`
	ArtifactRef string                `json:"artifact_ref,omitempty"`
	ErrorDetail *domain.FailureDetail `json:"error_detail,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// taskToStatusResponse converts a task snapshot to its tagged status
// payload, keeping per-state fields valid only for that state.
func taskToStatusResponse(task *domain.Task) StatusResponse {
	resp := StatusResponse{
		TaskID:    task.ID.String(),
		State:     string(task.State),
		CreatedAt: task.CreatedAt,
	}

	switch task.State {
	case domain.TaskStateProcessing:
		progress := task.Progress
		resp.Progress = &progress
	case domain.TaskStateCompleted:
		resp.ArtifactRef = task.ArtifactRef
		resp.CompletedAt = task.CompletedAt
	case domain.TaskStateFailed:
		resp.ErrorDetail = task.ErrorDetail
		resp.CompletedAt = task.CompletedAt
	}

	return resp
}

// HealthResponse reports service liveness and the supported profiles.
type HealthResponse struct {
	Status            string   `json:"status"`
	Version           string   `json:"version"`
	AvailableProfiles []string `json:"available_profiles"`
}
