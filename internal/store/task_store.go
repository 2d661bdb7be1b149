package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/framecast/render-api/internal/domain"
)

// Common store errors used across all store implementations.
var (
	// ErrTaskNotFound is returned when the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a state transition is attempted
	// from a state that does not allow it. This indicates a scheduler bug,
	// not a client error, so callers must not swallow it silently.
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrInvalidProgress is returned when a progress update is out of range
	// or would move progress backwards.
	ErrInvalidProgress = errors.New("invalid progress value")
)

// IsNotFoundError reports whether the error indicates a missing task.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// TerminalObserver is notified when a task reaches a terminal state. The
// store guarantees exactly one invocation per task, after the transition has
// committed, with an immutable snapshot of the final record.
type TerminalObserver func(task *domain.Task)

// TaskStore owns the authoritative task records and their lifecycle. Every
// method is safe for concurrent invocation. Transition methods enforce the
// state machine: pending -> processing -> (completed | failed), progress
// monotone while processing, artifact set only on completion, error detail
// set only on failure.
type TaskStore interface {
	// Create inserts a pending task for the given spec and returns its
	// freshly allocated identifier. Identifiers are never reused.
	Create(spec domain.ResolvedSpec) (uuid.UUID, error)

	// Get returns an immutable snapshot of the task, or ErrTaskNotFound.
	Get(id uuid.UUID) (*domain.Task, error)

	// TransitionToProcessing moves a pending task to processing.
	TransitionToProcessing(id uuid.UUID) error

	// UpdateProgress sets the progress percentage of a processing task.
	// Progress is clamped to [0,100] on input validation and must never
	// decrease.
	UpdateProgress(id uuid.UUID, pct int) error

	// TransitionToCompleted moves a processing task to completed, recording
	// the artifact reference and forcing progress to 100.
	TransitionToCompleted(id uuid.UUID, artifactRef string) error

	// TransitionToFailed moves a pending or processing task to failed,
	// recording the failure detail. Pending tasks may fail directly only
	// through cancellation.
	TransitionToFailed(id uuid.UUID, detail domain.FailureDetail) error

	// Remove deletes a task record. Only pending tasks that never escaped
	// to a caller and terminal tasks may be removed; removing a processing
	// task returns ErrInvalidTransition.
	Remove(id uuid.UUID) error

	// Subscribe registers an observer for terminal transitions.
	Subscribe(observer TerminalObserver)

	// EvictTerminalBefore removes terminal tasks whose completion timestamp
	// is older than the cutoff, returning the number evicted. Non-terminal
	// tasks are never evicted.
	EvictTerminalBefore(cutoff time.Time) int
}
