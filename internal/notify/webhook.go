// Package notify delivers terminal-task webhooks to a configured external
// sink. Delivery failures are retried with bounded exponential backoff and
// never alter the task's own recorded state.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/framecast/render-api/internal/domain"
	"github.com/framecast/render-api/internal/redact"
)

// WebhookConfig holds configuration for the webhook dispatcher.
type WebhookConfig struct {
	// URL is the sink endpoint. Empty disables delivery entirely; that is
	// a supported configuration, not an error.
	URL string

	// Secret, when set, makes every delivery carry an HS256-signed JWT in
	// the Authorization header so the sink can authenticate the sender.
	Secret string

	// MaxRetries bounds re-delivery attempts after the first try.
	// Negative values fall back to the default.
	MaxRetries int

	// RetryBaseDelay is the base of the exponential backoff curve.
	RetryBaseDelay time.Duration

	// RequestTimeout bounds each individual POST.
	RequestTimeout time.Duration
}

// DefaultWebhookConfig returns a WebhookConfig with reasonable defaults.
// The retry ceiling and backoff base are deliberately configurable; these
// are only fallbacks.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// Payload is the body POSTed to the sink for each terminal task.
type Payload struct {
	TaskID      string                `json:"task_id"`
	State       domain.TaskState      `json:"state"`
	ArtifactRef string                `json:"artifact_ref,omitempty"`
	ErrorDetail *domain.FailureDetail `json:"error_detail,omitempty"`
	Prompt      string                `json:"prompt"`
	Profile     string                `json:"profile"`
	CreatedAt   time.Time             `json:"created_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// WebhookDispatcher observes terminal task transitions and delivers one
// notification attempt sequence per task. The store guarantees each task is
// observed exactly once, so there are no duplicate delivery bursts.
type WebhookDispatcher struct {
	config WebhookConfig
	client *http.Client
	logger *slog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewWebhookDispatcher creates a dispatcher for the given config.
func NewWebhookDispatcher(config WebhookConfig, logger *slog.Logger) *WebhookDispatcher {
	if config.MaxRetries < 0 {
		config.MaxRetries = DefaultWebhookConfig().MaxRetries
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = DefaultWebhookConfig().RetryBaseDelay
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultWebhookConfig().RequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookDispatcher{
		config:     config,
		client:     &http.Client{Timeout: config.RequestTimeout},
		logger:     logger.With("component", "webhook_dispatcher"),
		ctx:        ctx,
		cancelFunc: cancel,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Enabled reports whether a sink URL is configured.
func (d *WebhookDispatcher) Enabled() bool {
	return d.config.URL != ""
}

// OnTaskTerminal is the store.TerminalObserver hook. It launches the
// delivery attempt sequence on its own goroutine so store transitions never
// wait on the network.
func (d *WebhookDispatcher) OnTaskTerminal(task *domain.Task) {
	if !d.Enabled() {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(task)
	}()
}

// Stop aborts in-flight backoff waits and drains running deliveries.
func (d *WebhookDispatcher) Stop() {
	d.cancelFunc()
	d.wg.Wait()
}

// deliver runs the bounded attempt sequence for one task. Transient
// failures (network errors, 429, 5xx) are retried with exponential backoff
// and jitter; any other non-2xx status is treated as permanent. Exhausting
// the ceiling is logged and abandoned.
func (d *WebhookDispatcher) deliver(task *domain.Task) {
	logger := d.logger.With("task_id", task.ID, "state", task.State)

	body, err := json.Marshal(payloadFor(task))
	if err != nil {
		logger.Error("failed to encode webhook payload", "error", err)
		return
	}

	maxAttempts := d.config.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := d.post(body, task.ID.String())
		if err == nil {
			logger.Info("webhook delivered", "attempt", attempt)
			return
		}

		if permanent, ok := err.(*permanentDeliveryError); ok {
			logger.Warn("webhook rejected, not retrying",
				"attempt", attempt,
				"status", permanent.status)
			return
		}

		logger.Warn("webhook delivery failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", redact.Error(err))

		if attempt == maxAttempts {
			logger.Error("webhook delivery abandoned",
				"attempts", maxAttempts)
			return
		}

		// Exponential backoff with jitter:
		// delay = base * 2^(attempt-1) * (0.5 + rand(0, 0.5)).
		backoff := float64(d.config.RetryBaseDelay) * math.Pow(2, float64(attempt-1))
		delay := time.Duration(backoff * d.jitterFactor())

		select {
		case <-time.After(delay):
		case <-d.ctx.Done():
			logger.Info("webhook delivery aborted by shutdown", "attempt", attempt)
			return
		}
	}
}

// post performs one HTTP delivery attempt.
func (d *WebhookDispatcher) post(body []byte, taskID string) error {
	ctx, cancel := context.WithTimeout(d.ctx, d.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if d.config.Secret != "" {
		token, err := d.signToken(taskID)
		if err != nil {
			return fmt.Errorf("failed to sign webhook token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook sink returned %d", resp.StatusCode)
	default:
		return &permanentDeliveryError{status: resp.StatusCode}
	}
}

// signToken issues a short-lived HS256 JWT scoped to the notified task.
func (d *WebhookDispatcher) signToken(taskID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "render-api",
		Subject:   taskID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(d.config.Secret))
}

func (d *WebhookDispatcher) jitterFactor() float64 {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return 0.5 + d.rng.Float64()*0.5
}

// payloadFor builds the outbound payload from a terminal task snapshot.
func payloadFor(task *domain.Task) Payload {
	return Payload{
		TaskID:      task.ID.String(),
		State:       task.State,
		ArtifactRef: task.ArtifactRef,
		ErrorDetail: task.ErrorDetail,
		Prompt:      task.Spec.Prompt,
		Profile:     task.Spec.Profile,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
	}
}

// permanentDeliveryError marks a sink response that retrying cannot fix.
type permanentDeliveryError struct {
	status int
}

func (e *permanentDeliveryError) Error() string {
	return fmt.Sprintf("webhook sink rejected delivery with status %d", e.status)
}
