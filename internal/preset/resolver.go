// Package preset maps named target profiles (social-platform presets) to
// concrete rendering parameters and validates client-supplied overrides
// against profile limits. Resolution is pure and safe for concurrent use.
package preset

import (
	"fmt"
	"strings"

	"github.com/framecast/render-api/internal/domain"
)

// Profile is a named bundle of default rendering parameters with optional
// hard ceilings. A zero MaxDurationSeconds means the profile imposes no
// duration ceiling.
type Profile struct {
	Name               string
	Width              int
	Height             int
	FPS                int
	MaxDurationSeconds int
}

// Default values applied when neither the profile nor the request specifies
// a parameter.
const (
	DefaultDurationSeconds = 5
	DefaultInferenceSteps  = 25
	DefaultGuidanceScale   = 7.5

	// MaxDimension bounds width/height overrides for every profile.
	MaxDimension = 4096
)

// DefaultProfileName is the profile used when the requested name is unknown
// or empty. An unknown profile name is not a client error.
const DefaultProfileName = "default"

// builtinProfiles holds the supported target profiles.
var builtinProfiles = map[string]Profile{
	"default": {
		Name:   "default",
		Width:  1024,
		Height: 576,
		FPS:    24,
	},
	"instagram": {
		Name:               "instagram",
		Width:              1080,
		Height:             1920,
		FPS:                30,
		MaxDurationSeconds: 90,
	},
	"youtube_shorts": {
		Name:               "youtube_shorts",
		Width:              1080,
		Height:             1920,
		FPS:                30,
		MaxDurationSeconds: 60,
	},
	"youtube": {
		Name:   "youtube",
		Width:  1920,
		Height: 1080,
		FPS:    30,
	},
}

// ValidationError identifies the request field that failed validation.
// It wraps domain.ErrValidation so callers can classify it with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", domain.ErrValidation.Error(), e.Field, e.Message)
}

// Unwrap lets errors.Is match ValidationError against domain.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return domain.ErrValidation
}

// Profiles returns the names of all supported profiles.
func Profiles() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	return names
}

// Lookup returns the profile for the given name, falling back to the default
// profile when the name is unknown or empty.
func Lookup(name string) Profile {
	if p, ok := builtinProfiles[strings.ToLower(name)]; ok {
		return p
	}
	return builtinProfiles[DefaultProfileName]
}

// Resolve normalizes a generation request against its target profile,
// producing a fully concrete spec. Overrides supplied by the caller are
// validated against the profile's limits; absent values take the profile
// defaults. Validation never partially mutates anything: the first failing
// field aborts resolution.
func Resolve(req domain.GenerationRequest) (domain.ResolvedSpec, error) {
	if err := req.Validate(); err != nil {
		return domain.ResolvedSpec{}, &ValidationError{Field: "prompt", Message: err.Error()}
	}

	profile := Lookup(req.Profile)

	spec := domain.ResolvedSpec{
		Prompt:          req.Prompt,
		NegativePrompt:  req.NegativePrompt,
		Profile:         profile.Name,
		Width:           profile.Width,
		Height:          profile.Height,
		FPS:             profile.FPS,
		DurationSeconds: DefaultDurationSeconds,
		InferenceSteps:  DefaultInferenceSteps,
		GuidanceScale:   DefaultGuidanceScale,
	}

	if req.Width != nil {
		if *req.Width <= 0 || *req.Width > MaxDimension {
			return domain.ResolvedSpec{}, &ValidationError{
				Field:   "width",
				Message: fmt.Sprintf("must be between 1 and %d", MaxDimension),
			}
		}
		spec.Width = *req.Width
	}

	if req.Height != nil {
		if *req.Height <= 0 || *req.Height > MaxDimension {
			return domain.ResolvedSpec{}, &ValidationError{
				Field:   "height",
				Message: fmt.Sprintf("must be between 1 and %d", MaxDimension),
			}
		}
		spec.Height = *req.Height
	}

	if req.FPS != nil {
		if *req.FPS <= 0 {
			return domain.ResolvedSpec{}, &ValidationError{
				Field:   "fps",
				Message: "must be positive",
			}
		}
		spec.FPS = *req.FPS
	}

	if req.DurationSeconds != nil {
		if *req.DurationSeconds <= 0 {
			return domain.ResolvedSpec{}, &ValidationError{
				Field:   "duration_seconds",
				Message: "must be positive",
			}
		}
		if profile.MaxDurationSeconds > 0 && *req.DurationSeconds > profile.MaxDurationSeconds {
			return domain.ResolvedSpec{}, &ValidationError{
				Field: "duration_seconds",
				Message: fmt.Sprintf("exceeds %s profile maximum of %d seconds",
					profile.Name, profile.MaxDurationSeconds),
			}
		}
		spec.DurationSeconds = *req.DurationSeconds
	}

	if req.Seed != nil {
		spec.Seed = *req.Seed
	}

	if req.InferenceSteps != nil {
		if *req.InferenceSteps <= 0 {
			return domain.ResolvedSpec{}, &ValidationError{
				Field:   "inference_steps",
				Message: "must be positive",
			}
		}
		spec.InferenceSteps = *req.InferenceSteps
	}

	if req.GuidanceScale != nil {
		if *req.GuidanceScale <= 0 {
			return domain.ResolvedSpec{}, &ValidationError{
				Field:   "guidance_scale",
				Message: "must be positive",
			}
		}
		spec.GuidanceScale = *req.GuidanceScale
	}

	return spec, nil
}
