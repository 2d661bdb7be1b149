package domain

import (
	"strings"
	"time"
)

// GenerationRequest is a client's request to render a video from a text
// prompt. Optional fields are pointers; nil means "use the profile default".
// It is immutable once accepted.
type GenerationRequest struct {
	Prompt          string   `json:"prompt"`
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

// Validate checks the request-level invariants that hold regardless of the
// target profile. Profile-dependent range checks live in the preset resolver.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// ResolvedSpec holds the fully concrete rendering parameters for a task,
// produced by resolving a GenerationRequest against a profile. Every field
// is populated; there are no optional values left to interpret.
type ResolvedSpec struct {
	Prompt          string        `json:"prompt"`
	NegativePrompt  string        `json:"negative_prompt,omitempty"`
	Profile         string        `json:"profile"`
	Width           int           `json:"width"`
	Height          int           `json:"height"`
	FPS             int           `json:"fps"`
	DurationSeconds int           `json:"duration_seconds"`
	Seed            int64         `json:"seed"`
	InferenceSteps  int           `json:"inference_steps"`
	GuidanceScale   float64       `json:"guidance_scale"`
	Deadline        time.Duration `json:"-"`
}

// FrameCount returns the total number of frames the spec describes.
func (s ResolvedSpec) FrameCount() int {
	return s.FPS * s.DurationSeconds
}
