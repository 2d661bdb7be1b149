package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framecast/render-api/internal/domain"
)

// MemoryTaskStore is the in-memory TaskStore implementation. Records live
// only for the lifetime of the process; there is no persistence across
// restarts. Critical sections are short and never span a render call.
type MemoryTaskStore struct {
	mu        sync.RWMutex
	tasks     map[uuid.UUID]*domain.Task
	observers []TerminalObserver
	logger    *slog.Logger

	// notifyWG tracks in-flight observer notifications so Close can drain
	// them before the process shuts down.
	notifyWG sync.WaitGroup
}

// NewMemoryTaskStore creates an empty in-memory task store.
func NewMemoryTaskStore(logger *slog.Logger) *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks:  make(map[uuid.UUID]*domain.Task),
		logger: logger.With("component", "task_store"),
	}
}

// Create inserts a new pending task and returns its identifier.
func (s *MemoryTaskStore) Create(spec domain.ResolvedSpec) (uuid.UUID, error) {
	task := domain.NewTask(spec)

	s.mu.Lock()
	defer s.mu.Unlock()

	// uuid collisions are not a practical concern, but id reuse would break
	// the lifecycle contract, so guard anyway.
	if _, exists := s.tasks[task.ID]; exists {
		return uuid.Nil, fmt.Errorf("task id collision: %s", task.ID)
	}
	s.tasks[task.ID] = task

	s.logger.Debug("task created",
		"task_id", task.ID,
		"profile", task.Spec.Profile)
	return task.ID, nil
}

// Get returns a snapshot copy of the task.
func (s *MemoryTaskStore) Get(id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task.Clone(), nil
}

// TransitionToProcessing moves a pending task to processing.
func (s *MemoryTaskStore) TransitionToProcessing(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if !domain.ValidTransition(task.State, domain.TaskStateProcessing) {
		return fmt.Errorf("%w: %s -> %s for task %s",
			ErrInvalidTransition, task.State, domain.TaskStateProcessing, id)
	}

	task.State = domain.TaskStateProcessing
	task.Progress = 0
	return nil
}

// UpdateProgress sets the progress of a processing task. Progress outside
// [0,100] or a decrease is rejected.
func (s *MemoryTaskStore) UpdateProgress(id uuid.UUID, pct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.State != domain.TaskStateProcessing {
		return fmt.Errorf("%w: progress update in state %s for task %s",
			ErrInvalidTransition, task.State, id)
	}
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, pct)
	}
	if pct < task.Progress {
		return fmt.Errorf("%w: %d would regress from %d", ErrInvalidProgress, pct, task.Progress)
	}

	task.Progress = pct
	return nil
}

// TransitionToCompleted moves a processing task to completed with its
// artifact reference.
func (s *MemoryTaskStore) TransitionToCompleted(id uuid.UUID, artifactRef string) error {
	if artifactRef == "" {
		return fmt.Errorf("%w: completed task requires an artifact reference", ErrInvalidTransition)
	}

	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if !domain.ValidTransition(task.State, domain.TaskStateCompleted) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s for task %s",
			ErrInvalidTransition, task.State, domain.TaskStateCompleted, id)
	}

	now := time.Now().UTC()
	task.State = domain.TaskStateCompleted
	task.Progress = 100
	task.ArtifactRef = artifactRef
	task.CompletedAt = &now
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Info("task completed",
		"task_id", id,
		"artifact_ref", artifactRef)
	s.notifyTerminal(snapshot)
	return nil
}

// TransitionToFailed moves a pending or processing task to failed with the
// given detail. Failing a pending task is only legal for cancellation, which
// the state machine already encodes.
func (s *MemoryTaskStore) TransitionToFailed(id uuid.UUID, detail domain.FailureDetail) error {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if !domain.ValidTransition(task.State, domain.TaskStateFailed) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s for task %s",
			ErrInvalidTransition, task.State, domain.TaskStateFailed, id)
	}

	now := time.Now().UTC()
	task.State = domain.TaskStateFailed
	task.ErrorDetail = &detail
	task.CompletedAt = &now
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Info("task failed",
		"task_id", id,
		"failure_kind", detail.Kind,
		"failure_message", detail.Message)
	s.notifyTerminal(snapshot)
	return nil
}

// Remove deletes a task record. Processing tasks are exclusively owned by a
// worker and must never be removed out from under it.
func (s *MemoryTaskStore) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if task.State == domain.TaskStateProcessing {
		return fmt.Errorf("%w: cannot remove task %s while processing", ErrInvalidTransition, id)
	}

	delete(s.tasks, id)
	return nil
}

// Subscribe registers a terminal observer. Observers registered after a task
// has already reached a terminal state are not notified for that task.
func (s *MemoryTaskStore) Subscribe(observer TerminalObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// EvictTerminalBefore removes terminal tasks completed before the cutoff.
// In-flight tasks are never evicted; snapshot-on-read keeps concurrent
// readers safe against eviction of terminal records.
func (s *MemoryTaskStore) EvictTerminalBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, task := range s.tasks {
		if task.State.IsTerminal() && task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Info("evicted terminal tasks",
			"count", evicted,
			"cutoff", cutoff)
	}
	return evicted
}

// Len returns the number of tracked tasks.
func (s *MemoryTaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Close waits for in-flight observer notifications to drain.
func (s *MemoryTaskStore) Close() {
	s.notifyWG.Wait()
}

// notifyTerminal fans the snapshot out to observers on a separate goroutine
// so transition callers never block on observer work. A task transitions to
// a terminal state exactly once, so each observer sees each task at most
// once.
func (s *MemoryTaskStore) notifyTerminal(snapshot *domain.Task) {
	s.mu.RLock()
	observers := make([]TerminalObserver, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	if len(observers) == 0 {
		return
	}

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		for _, observer := range observers {
			observer(snapshot.Clone())
		}
	}()
}

var _ TaskStore = (*MemoryTaskStore)(nil)
