package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framecast/render-api/internal/domain"
	"github.com/framecast/render-api/internal/preset"
	"github.com/framecast/render-api/internal/render"
	"github.com/framecast/render-api/internal/store"
)

// errCancelRequested is the cancellation cause distinguishing a client
// cancel from a deadline expiry on a supervised render context.
var errCancelRequested = errors.New("cancellation requested")

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	// WorkerCount bounds how many renders run concurrently.
	// Values below 1 fall back to 1.
	WorkerCount int

	// MaxQueueDepth caps the admission queue. Zero means unbounded:
	// excess submissions wait in pending state rather than being rejected.
	MaxQueueDepth int

	// TaskTimeout is the per-task render deadline. Zero disables it.
	TaskTimeout time.Duration
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		WorkerCount:   4,
		MaxQueueDepth: 0,
		TaskTimeout:   0,
	}
}

// Scheduler admits generation requests, creates their task records, and
// drives them through the state machine on a fixed pool of workers. Submit
// never blocks on rendering; backpressure beyond the worker pool shows up
// as queueing delay in pending state.
type Scheduler struct {
	store    store.TaskStore
	renderer render.Renderer
	config   SchedulerConfig
	queue    *taskQueue
	logger   *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	// cancels maps a processing task to the cancel function of its
	// supervised render context, for best-effort cancellation.
	cancelsMu sync.Mutex
	cancels   map[uuid.UUID]context.CancelCauseFunc

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewScheduler creates a Scheduler over the given store and renderer.
func NewScheduler(
	taskStore store.TaskStore,
	renderer render.Renderer,
	config SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	if config.WorkerCount < 1 {
		logger.Warn("invalid worker count specified, using 1",
			"specified_count", config.WorkerCount)
		config.WorkerCount = 1
	}

	schedLogger := logger.With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:      taskStore,
		renderer:   renderer,
		config:     config,
		queue:      newTaskQueue(config.MaxQueueDepth, schedLogger),
		logger:     schedLogger,
		ctx:        ctx,
		cancelFunc: cancel,
		cancels:    make(map[uuid.UUID]context.CancelCauseFunc),
	}
}

// Start launches the worker pool.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		for i := 0; i < s.config.WorkerCount; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
		s.logger.Info("scheduler started",
			"worker_count", s.config.WorkerCount,
			"max_queue_depth", s.config.MaxQueueDepth,
			"task_timeout", s.config.TaskTimeout)
	})
}

// Stop shuts the scheduler down: no further submissions are admitted,
// in-flight renders are asked to stop, and all workers are joined.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.queue.Close()
		s.cancelFunc()
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	})
}

// Submit resolves the request against its target profile, creates a pending
// task record, and enqueues it for execution. It returns the task id
// immediately; it never blocks on the render itself.
//
// A validation failure or a full queue means no task record exists
// afterwards: the id of a rejected submission never escapes.
func (s *Scheduler) Submit(req domain.GenerationRequest) (uuid.UUID, error) {
	spec, err := preset.Resolve(req)
	if err != nil {
		return uuid.Nil, err
	}
	spec.Deadline = s.config.TaskTimeout

	id, err := s.store.Create(spec)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.queue.Enqueue(id); err != nil {
		// Roll the record back; the id was never returned to anyone.
		if rmErr := s.store.Remove(id); rmErr != nil {
			s.logger.Error("failed to roll back rejected task",
				"task_id", id, "error", rmErr)
		}
		return uuid.Nil, err
	}

	s.logger.Info("task submitted",
		"task_id", id,
		"profile", spec.Profile,
		"queue_len", s.queue.Len())
	return id, nil
}

// Cancel requests cancellation of a task. A pending task fails immediately
// with a cancelled detail and never enters processing. For a processing task
// this is a best-effort signal to the render context; if the engine does not
// stop cooperatively, its eventual result is discarded and the task is
// forced to failed once the call returns. Cancelling a terminal task returns
// store.ErrInvalidTransition.
func (s *Scheduler) Cancel(id uuid.UUID) error {
	task, err := s.store.Get(id)
	if err != nil {
		return err
	}

	switch task.State {
	case domain.TaskStatePending:
		err := s.store.TransitionToFailed(id, domain.FailureDetail{
			Kind:    domain.FailureKindCancelled,
			Message: "cancelled before execution",
		})
		if err == nil {
			s.logger.Info("pending task cancelled", "task_id", id)
			return nil
		}
		// Lost the race against a worker claiming the task; fall through to
		// the processing path.
		if s.signalCancel(id) {
			return nil
		}
		return err

	case domain.TaskStateProcessing:
		if s.signalCancel(id) {
			s.logger.Info("cancellation signalled to running render", "task_id", id)
			return nil
		}
		// The task finished between the Get and the signal.
		return fmt.Errorf("%w: task %s already finished", store.ErrInvalidTransition, id)

	default:
		return fmt.Errorf("%w: cannot cancel task %s in state %s",
			store.ErrInvalidTransition, id, task.State)
	}
}

// QueueLen reports how many admitted tasks are waiting for a worker.
func (s *Scheduler) QueueLen() int {
	return s.queue.Len()
}

// signalCancel cancels the supervised render context of a processing task.
func (s *Scheduler) signalCancel(id uuid.UUID) bool {
	s.cancelsMu.Lock()
	cancel, ok := s.cancels[id]
	s.cancelsMu.Unlock()
	if ok {
		cancel(errCancelRequested)
	}
	return ok
}

func (s *Scheduler) registerCancel(id uuid.UUID, cancel context.CancelCauseFunc) {
	s.cancelsMu.Lock()
	s.cancels[id] = cancel
	s.cancelsMu.Unlock()
}

func (s *Scheduler) unregisterCancel(id uuid.UUID) {
	s.cancelsMu.Lock()
	delete(s.cancels, id)
	s.cancelsMu.Unlock()
}

// worker dequeues task ids and executes them until the queue closes.
func (s *Scheduler) worker(workerID int) {
	defer s.wg.Done()

	s.logger.Debug("starting worker", "worker_id", workerID)
	for {
		id, ok := s.queue.Dequeue()
		if !ok {
			s.logger.Debug("stopping worker", "worker_id", workerID)
			return
		}
		s.executeTask(id, workerID)
	}
}

// renderResult carries the outcome of a render call across the supervision
// boundary.
type renderResult struct {
	artifactRef string
	err         error
}

// executeTask drives a single task through processing to a terminal state.
// Whatever happens inside the render call — structured failure, panic,
// deadline, cancellation — the task ends terminal and the worker survives.
func (s *Scheduler) executeTask(id uuid.UUID, workerID int) {
	logger := s.logger.With("task_id", id, "worker_id", workerID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during task execution", "panic", r)
			s.forceFailed(id, domain.FailureDetail{
				Kind:    domain.FailureKindInternal,
				Message: fmt.Sprintf("internal fault: %v", r),
			}, logger)
		}
	}()

	if err := s.store.TransitionToProcessing(id); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			// Cancelled while pending; the record is already terminal.
			logger.Debug("skipping task no longer pending", "error", err)
		} else {
			logger.Error("failed to claim task", "error", err)
		}
		return
	}

	task, err := s.store.Get(id)
	if err != nil {
		logger.Error("failed to load claimed task", "error", err)
		s.forceFailed(id, domain.FailureDetail{
			Kind:    domain.FailureKindInternal,
			Message: "task record unavailable after claim",
		}, logger)
		return
	}

	ctx, cancelCause := context.WithCancelCause(s.ctx)
	defer cancelCause(nil)
	if task.Spec.Deadline > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, task.Spec.Deadline)
		defer cancelTimeout()
	}

	s.registerCancel(id, cancelCause)
	defer s.unregisterCancel(id)

	logger.Info("processing task", "profile", task.Spec.Profile)

	resultCh := make(chan renderResult, 1)
	go func() {
		ref, renderErr := s.renderer.Render(ctx, task.Spec, func(pct int) {
			// Progress updates after a forced failure hit a terminal record;
			// that is expected and not worth more than a debug line.
			if upErr := s.store.UpdateProgress(id, pct); upErr != nil {
				logger.Debug("dropped progress update", "pct", pct, "error", upErr)
			}
		})
		resultCh <- renderResult{artifactRef: ref, err: renderErr}
	}()

	// The hard supervisory timer: the worker never blocks past the deadline
	// waiting for a render that will not stop. A late result is drained and
	// discarded so the render goroutine cannot leak.
	select {
	case res := <-resultCh:
		s.finishTask(ctx, id, res, logger)

	case <-ctx.Done():
		s.forceFailed(id, failureForCause(ctx), logger)
		go func() {
			res := <-resultCh
			if res.err == nil {
				logger.Info("discarded render result after forced failure",
					"artifact_ref", res.artifactRef)
			}
		}()
	}
}

// finishTask records the outcome of a render that returned before the
// supervisory timer fired.
func (s *Scheduler) finishTask(ctx context.Context, id uuid.UUID, res renderResult, logger *slog.Logger) {
	if res.err == nil {
		if err := s.store.UpdateProgress(id, 100); err != nil {
			logger.Error("failed to record final progress", "error", err)
		}
		if err := s.store.TransitionToCompleted(id, res.artifactRef); err != nil {
			logger.Error("failed to record completion", "error", err)
			return
		}
		logger.Info("task completed successfully", "artifact_ref", res.artifactRef)
		return
	}

	// A render aborted by its context is a timeout or cancellation, not an
	// engine failure.
	detail := domain.FailureDetail{
		Kind:    domain.FailureKindRender,
		Message: res.err.Error(),
	}
	if ctx.Err() != nil && (errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded)) {
		detail = failureForCause(ctx)
	}

	logger.Error("task execution failed",
		"failure_kind", detail.Kind,
		"error", res.err)
	s.forceFailed(id, detail, logger)
}

// forceFailed transitions the task to failed, tolerating the race where the
// task reached a terminal state through another path.
func (s *Scheduler) forceFailed(id uuid.UUID, detail domain.FailureDetail, logger *slog.Logger) {
	if err := s.store.TransitionToFailed(id, detail); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			logger.Debug("task already terminal", "error", err)
			return
		}
		logger.Error("failed to record task failure", "error", err)
	}
}

// failureForCause maps a done supervision context to the failure detail of
// the forced transition.
func failureForCause(ctx context.Context) domain.FailureDetail {
	if errors.Is(context.Cause(ctx), errCancelRequested) {
		return domain.FailureDetail{
			Kind:    domain.FailureKindCancelled,
			Message: "cancelled during execution",
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.FailureDetail{
			Kind:    domain.FailureKindTimeout,
			Message: "render deadline exceeded",
		}
	}
	return domain.FailureDetail{
		Kind:    domain.FailureKindCancelled,
		Message: "scheduler shutting down",
	}
}
