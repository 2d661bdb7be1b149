// Package synthvid provides a self-contained reference implementation of
// the render.Renderer boundary. It synthesizes a placeholder clip from the
// prompt (an animated gradient seeded by prompt keywords) and writes it to
// the configured output directory. Real deployments swap in an engine-backed
// implementation; this one exists so the service runs end to end without
// GPU-backed model dependencies.
package synthvid

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/framecast/render-api/internal/domain"
	"github.com/framecast/render-api/internal/render"
)

// Renderer synthesizes placeholder video artifacts.
type Renderer struct {
	outputDir string
	logger    *slog.Logger
}

// New creates a Renderer writing artifacts under outputDir. The directory is
// created if it does not exist.
func New(outputDir string, logger *slog.Logger) (*Renderer, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Renderer{
		outputDir: outputDir,
		logger:    logger.With("component", "synthvid_renderer"),
	}, nil
}

// promptColors maps prompt keywords to a base color. Order matters: the
// first matching keyword wins, so resolution is deterministic.
var promptColors = []struct {
	keyword string
	color   [3]byte
}{
	{"red", [3]byte{255, 50, 50}},
	{"blue", [3]byte{50, 50, 255}},
	{"green", [3]byte{50, 255, 50}},
	{"yellow", [3]byte{255, 255, 50}},
	{"purple", [3]byte{200, 50, 255}},
	{"orange", [3]byte{255, 150, 50}},
	{"pink", [3]byte{255, 100, 200}},
	{"ocean", [3]byte{50, 100, 255}},
	{"sunset", [3]byte{255, 100, 50}},
	{"forest", [3]byte{50, 150, 50}},
	{"sky", [3]byte{100, 150, 255}},
}

// defaultColor is used when no keyword matches.
var defaultColor = [3]byte{100, 100, 200}

// Render synthesizes the clip frame by frame, reporting progress from 10 to
// 90 during frame generation, and returns the artifact file name relative to
// the output directory. It checks ctx between frames, so cancellation takes
// effect within one frame's work.
func (r *Renderer) Render(
	ctx context.Context,
	spec domain.ResolvedSpec,
	progress render.ProgressFunc,
) (string, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.FPS <= 0 || spec.DurationSeconds <= 0 {
		return "", fmt.Errorf("%w: %dx%d@%dfps for %ds",
			render.ErrInvalidSpec, spec.Width, spec.Height, spec.FPS, spec.DurationSeconds)
	}

	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	artifactName := uuid.NewString() + ".mp4"
	outputPath := filepath.Join(r.outputDir, artifactName)

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("%w: creating artifact file: %v", render.ErrRenderFailed, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Warn("failed to close artifact file", "path", outputPath, "error", cerr)
		}
	}()

	rng := rand.New(rand.NewSource(spec.Seed))
	color := colorFromPrompt(spec.Prompt)
	frameCount := spec.FrameCount()

	r.logger.Debug("starting synthesis",
		"artifact", artifactName,
		"frames", frameCount,
		"width", spec.Width,
		"height", spec.Height)

	report(10)

	w := bufio.NewWriter(f)
	// Minimal container header so downstream tooling recognizes the file as
	// an mp4 (ftyp box). The payload itself is synthetic.
	if _, err := w.Write(mp4Header()); err != nil {
		return "", fmt.Errorf("%w: writing header: %v", render.ErrRenderFailed, err)
	}

	row := make([]byte, spec.Width*3)
	for frame := 0; frame < frameCount; frame++ {
		select {
		case <-ctx.Done():
			// Abandoned render: drop the partial artifact.
			if rerr := os.Remove(outputPath); rerr != nil {
				r.logger.Warn("failed to remove partial artifact", "path", outputPath, "error", rerr)
			}
			return "", ctx.Err()
		default:
		}

		offset := byte((frame * 255) / frameCount)
		noise := byte(rng.Intn(16))
		for y := 0; y < spec.Height; y++ {
			for x := 0; x < spec.Width; x++ {
				row[x*3] = color[0] + offset + byte(x/10) + noise
				row[x*3+1] = color[1] + offset + byte(y/10)
				row[x*3+2] = color[2] + offset + byte((x+y)/20)
			}
			if _, err := w.Write(row); err != nil {
				return "", fmt.Errorf("%w: writing frame %d: %v", render.ErrRenderFailed, frame, err)
			}
		}

		report(10 + (frame*80)/frameCount)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("%w: flushing artifact: %v", render.ErrRenderFailed, err)
	}

	report(90)
	r.logger.Info("artifact synthesized",
		"artifact", artifactName,
		"frames", frameCount)
	return artifactName, nil
}

// colorFromPrompt picks the base color for the first matching keyword.
func colorFromPrompt(prompt string) [3]byte {
	lower := strings.ToLower(prompt)
	for _, entry := range promptColors {
		if strings.Contains(lower, entry.keyword) {
			return entry.color
		}
	}
	return defaultColor
}

// mp4Header returns a minimal ftyp box for an isom-branded file.
func mp4Header() []byte {
	return []byte{
		0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
		'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
		'i', 's', 'o', 'm', 'm', 'p', '4', '2',
	}
}

var _ render.Renderer = (*Renderer)(nil)
