// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when client input fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyPrompt is returned when a generation request carries no prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrInvalidTaskState is returned when a task state value is not one of
	// the known states.
	ErrInvalidTaskState = errors.New("invalid task state")
)
