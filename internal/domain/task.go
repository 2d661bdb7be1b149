package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskState represents the lifecycle state of a generation task.
type TaskState string

// Possible task states. Transitions are strictly
// pending -> processing -> (completed | failed).
const (
	TaskStatePending    TaskState = "pending"
	TaskStateProcessing TaskState = "processing"
	TaskStateCompleted  TaskState = "completed"
	TaskStateFailed     TaskState = "failed"
)

// IsTerminal reports whether no further transitions are possible from s.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// IsValid reports whether s is one of the known task states.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStatePending, TaskStateProcessing, TaskStateCompleted, TaskStateFailed:
		return true
	default:
		return false
	}
}

// ValidTransition reports whether moving from one state to another is
// allowed by the task state machine. Terminal states admit no transitions
// and processing cannot be skipped.
func ValidTransition(from, to TaskState) bool {
	switch from {
	case TaskStatePending:
		return to == TaskStateProcessing || to == TaskStateFailed
	case TaskStateProcessing:
		return to == TaskStateCompleted || to == TaskStateFailed
	default:
		return false
	}
}

// FailureKind classifies why a task failed.
type FailureKind string

// Possible failure kinds recorded in a failed task's detail.
const (
	FailureKindRender    FailureKind = "render"
	FailureKindTimeout   FailureKind = "timeout"
	FailureKindCancelled FailureKind = "cancelled"
	FailureKindInternal  FailureKind = "internal"
)

// FailureDetail describes the terminal failure of a task.
type FailureDetail struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Task is one unit of scheduled generation work and its tracked lifecycle
// record. Once created it is owned by the task store; callers only ever see
// snapshot copies.
type Task struct {
	ID          uuid.UUID      `json:"id"`
	State       TaskState      `json:"state"`
	Spec        ResolvedSpec   `json:"spec"`
	Progress    int            `json:"progress"`
	ArtifactRef string         `json:"artifact_ref,omitempty"`
	ErrorDetail *FailureDetail `json:"error_detail,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// NewTask creates a pending Task for the given resolved spec with a freshly
// allocated identifier.
func NewTask(spec ResolvedSpec) *Task {
	return &Task{
		ID:        uuid.New(),
		State:     TaskStatePending,
		Spec:      spec,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the task. The store hands out clones so
// readers never observe a record mid-mutation.
func (t *Task) Clone() *Task {
	cp := *t
	if t.ErrorDetail != nil {
		detail := *t.ErrorDetail
		cp.ErrorDetail = &detail
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return &cp
}
