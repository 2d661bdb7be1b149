package task

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Common errors returned by the admission queue.
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// taskQueue is the FIFO admission queue between Submit and the workers.
// It is unbounded by default; a positive maxDepth turns over-depth Enqueue
// calls into ErrQueueFull so backpressure surfaces as a capacity error
// instead of unbounded memory growth.
type taskQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []uuid.UUID
	maxDepth int
	closed   bool
	logger   *slog.Logger
}

// newTaskQueue creates a queue. maxDepth <= 0 means unbounded.
func newTaskQueue(maxDepth int, logger *slog.Logger) *taskQueue {
	q := &taskQueue{
		maxDepth: maxDepth,
		logger:   logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a task id for processing.
func (q *taskQueue) Enqueue(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.maxDepth > 0 && len(q.items) >= q.maxDepth {
		return ErrQueueFull
	}

	q.items = append(q.items, id)
	q.logger.Debug("task enqueued",
		"task_id", id,
		"queue_len", len(q.items))
	q.cond.Signal()
	return nil
}

// Dequeue blocks until a task id is available or the queue is closed.
// The second return value is false once the queue is closed; remaining
// items stay pending for the store's records but are not handed out.
func (q *taskQueue) Dequeue() (uuid.UUID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return uuid.Nil, false
	}

	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

// Len returns the number of queued task ids.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue and wakes all blocked Dequeue callers.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
		q.logger.Info("task queue closed", "abandoned", len(q.items))
	}
}
