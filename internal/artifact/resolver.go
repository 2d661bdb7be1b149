// Package artifact maps completed tasks to retrievable artifact locations.
// It validates handles only; serving the artifact bytes belongs to the
// transport layer.
package artifact

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/framecast/render-api/internal/domain"
	"github.com/framecast/render-api/internal/store"
)

// ErrArtifactNotReady is returned when the task exists but has not
// completed, so there is no artifact yet. It is distinct from the store's
// not-found error.
var ErrArtifactNotReady = errors.New("artifact not ready")

// Location is a validated, retrievable artifact handle.
type Location struct {
	// Ref is the reference recorded on the task (file name or URL).
	Ref string

	// Path is the absolute filesystem path under the output directory.
	Path string
}

// Resolver validates artifact retrieval requests against completed tasks.
type Resolver struct {
	store     store.TaskStore
	outputDir string
}

// NewResolver creates a Resolver serving artifacts from outputDir.
func NewResolver(taskStore store.TaskStore, outputDir string) *Resolver {
	return &Resolver{
		store:     taskStore,
		outputDir: outputDir,
	}
}

// Resolve returns the artifact location for a completed task.
// Unknown ids yield store.ErrTaskNotFound; known but non-completed tasks
// yield ErrArtifactNotReady — a failed task never resolves to an artifact.
func (r *Resolver) Resolve(id uuid.UUID) (Location, error) {
	task, err := r.store.Get(id)
	if err != nil {
		return Location{}, err
	}

	if task.State != domain.TaskStateCompleted {
		return Location{}, fmt.Errorf("%w: task %s is %s", ErrArtifactNotReady, id, task.State)
	}

	path, err := r.safeJoin(task.ArtifactRef)
	if err != nil {
		return Location{}, err
	}

	return Location{Ref: task.ArtifactRef, Path: path}, nil
}

// safeJoin anchors the ref under the output directory and rejects refs that
// escape it.
func (r *Resolver) safeJoin(ref string) (string, error) {
	base, err := filepath.Abs(r.outputDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}

	joined := filepath.Join(base, ref)
	if !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact reference escapes output directory: %q", ref)
	}
	return joined, nil
}
