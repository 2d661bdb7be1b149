package render

import "errors"

// Common errors returned by Renderer implementations.
var (
	// ErrRenderFailed is returned when the engine reports a structured
	// failure producing the artifact.
	ErrRenderFailed = errors.New("failed to render video")

	// ErrInvalidSpec is returned when the engine cannot render the given
	// spec (unsupported dimensions, codec constraints and the like).
	ErrInvalidSpec = errors.New("spec not renderable")
)
