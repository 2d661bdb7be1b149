package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecast/render-api/internal/artifact"
	"github.com/framecast/render-api/internal/domain"
	"github.com/framecast/render-api/internal/render"
	"github.com/framecast/render-api/internal/store"
	"github.com/framecast/render-api/internal/task"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// testEnv wires a real scheduler, store, and artifact resolver behind the
// handler, with a renderer that writes a small artifact file.
type testEnv struct {
	router    http.Handler
	store     *store.MemoryTaskStore
	scheduler *task.Scheduler
	outputDir string
}

func newTestEnv(t *testing.T, cfg task.SchedulerConfig) *testEnv {
	t.Helper()
	logger := setupTestLogger()
	taskStore := store.NewMemoryTaskStore(logger)
	outputDir := t.TempDir()

	renderer := render.Func(func(ctx context.Context, spec domain.ResolvedSpec, progress render.ProgressFunc) (string, error) {
		name := uuid.NewString() + ".mp4"
		if err := os.WriteFile(filepath.Join(outputDir, name), []byte("video-bytes"), 0o644); err != nil {
			return "", err
		}
		return name, nil
	})

	scheduler := task.NewScheduler(taskStore, renderer, cfg, logger)
	scheduler.Start()
	t.Cleanup(scheduler.Stop)

	handler := NewGenerationHandler(
		scheduler,
		taskStore,
		artifact.NewResolver(taskStore, outputDir),
		logger,
	)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", handler.Generate)
		r.Get("/status/{taskID}", handler.Status)
		r.Get("/download/{taskID}", handler.Download)
		r.Post("/tasks/{taskID}/cancel", handler.CancelTask)
	})
	r.Get("/health", handler.Health)

	return &testEnv{
		router:    r,
		store:     taskStore,
		scheduler: scheduler,
		outputDir: outputDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) waitTerminal(t *testing.T, id string, within time.Duration) StatusResponse {
	t.Helper()
	var status StatusResponse
	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, "/api/v1/status/"+id, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		return status.State == string(domain.TaskStateCompleted) ||
			status.State == string(domain.TaskStateFailed)
	}, within, 5*time.Millisecond)
	return status
}

func TestGenerateAccepted(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodPost, "/api/v1/generate", GenerateRequest{
		Prompt:  "A sunrise",
		Profile: "instagram",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, "pending", resp.State)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestGenerateRejectsMissingPrompt(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodPost, "/api/v1/generate", map[string]string{
		"profile": "instagram",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateRejectsInvalidOverride(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	duration := 600
	rec := env.do(t, http.MethodPost, "/api/v1/generate", GenerateRequest{
		Prompt:          "A sunrise",
		Profile:         "youtube_shorts",
		DurationSeconds: &duration,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "duration_seconds")
}

func TestGenerateRejectsMalformedJSON(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusLifecycle(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodPost, "/api/v1/generate", GenerateRequest{Prompt: "A sunrise"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	status := env.waitTerminal(t, created.TaskID, 2*time.Second)
	assert.Equal(t, "completed", status.State)
	assert.NotEmpty(t, status.ArtifactRef)
	assert.Nil(t, status.ErrorDetail)
	assert.Nil(t, status.Progress, "progress is only reported while processing")
	require.NotNil(t, status.CompletedAt)
	assert.True(t, status.CompletedAt.After(status.CreatedAt))
}

func TestStatusUnknownTask(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodGet, "/api/v1/status/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusMalformedID(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodGet, "/api/v1/status/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadCompletedTask(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodPost, "/api/v1/generate", GenerateRequest{Prompt: "A sunrise"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	env.waitTerminal(t, created.TaskID, 2*time.Second)

	dl := env.do(t, http.MethodGet, "/api/v1/download/"+created.TaskID, nil)
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "video/mp4", dl.Header().Get("Content-Type"))
	assert.Equal(t, "video-bytes", dl.Body.String())
}

func TestDownloadNotReady(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	// Create a task directly in the store; it is pending and has no artifact.
	id, err := env.store.Create(domain.ResolvedSpec{Prompt: "x", Profile: "default"})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/download/"+id.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDownloadUnknownTask(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodGet, "/api/v1/download/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelPendingTask(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	// Bypass the scheduler so the task stays pending forever.
	id, err := env.store.Create(domain.ResolvedSpec{Prompt: "x", Profile: "default"})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/"+id.String()+"/cancel", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	status := env.do(t, http.MethodGet, "/api/v1/status/"+id.String(), nil)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(status.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.State)
	require.NotNil(t, resp.ErrorDetail)
	assert.Equal(t, domain.FailureKindCancelled, resp.ErrorDetail.Kind)
}

func TestCancelTerminalTaskConflicts(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodPost, "/api/v1/generate", GenerateRequest{Prompt: "quick"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	env.waitTerminal(t, created.TaskID, 2*time.Second)

	cancel := env.do(t, http.MethodPost, "/api/v1/tasks/"+created.TaskID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, cancel.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, task.SchedulerConfig{WorkerCount: 1})

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, Version, resp.Version)
	assert.Contains(t, resp.AvailableProfiles, "instagram")
	assert.Contains(t, resp.AvailableProfiles, "default")
}
