package render

import (
	"context"

	"github.com/framecast/render-api/internal/domain"
)

// ProgressFunc receives progress updates in percent while a render runs.
// Implementations must tolerate it being nil.
type ProgressFunc func(pct int)

// Renderer defines the interface for producing a video artifact from a
// resolved spec. This interface is the boundary between the orchestration
// core and the actual rendering engine, following the hexagonal
// architecture pattern: the engine is a swappable external collaborator
// that may take seconds to minutes per call.
//
// Render returns a reference to the produced artifact (a path or URL, never
// the bytes). Implementations should honor ctx cancellation cooperatively,
// but callers must not assume they do; the scheduler supervises every call
// with a hard timer.
type Renderer interface {
	Render(ctx context.Context, spec domain.ResolvedSpec, progress ProgressFunc) (string, error)
}

// Func adapts a plain function to the Renderer interface, mirroring
// http.HandlerFunc. Handy for tests and simple engines.
type Func func(ctx context.Context, spec domain.ResolvedSpec, progress ProgressFunc) (string, error)

// Render calls f.
func (f Func) Render(ctx context.Context, spec domain.ResolvedSpec, progress ProgressFunc) (string, error) {
	return f(ctx, spec, progress)
}
