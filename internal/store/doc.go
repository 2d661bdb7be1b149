// Package store defines the authoritative task record storage. The task
// store owns the mapping of task identifier to task record, enforces the
// task state machine on every mutation, and hands out immutable snapshots
// to readers. All implementations must be safe for concurrent use.
package store
