// Package task manages background render job queuing, processing, and
// lifecycle. It provides bounded-concurrency execution of long-running
// render operations so they never block request handling, supervises every
// render with timeout and cancellation handling, and drives the task state
// machine in the store.
package task
