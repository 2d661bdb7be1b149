// Package render defines the boundary interface to the video rendering
// engine. The orchestration core consumes the engine as a black-box
// capability; concrete implementations live under internal/platform.
package render
