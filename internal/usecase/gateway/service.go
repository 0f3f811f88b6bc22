// Package gateway is the single path to the language model: it caps
// concurrent calls, trims oversized prompts and retries failed attempts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/metrics"
)

const (
	// DefaultMaxConcurrent is the process-wide limit on in-flight chat calls.
	DefaultMaxConcurrent = 2
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 120 * time.Second
)

// Config holds gateway limits and the labels used for metrics.
type Config struct {
	Provider       string
	Model          string
	MaxConcurrent  int
	MaxPromptChars int
	Timeout        time.Duration
	Stream         bool
	Retry          RetryPolicy
}

// Gateway serializes access to one chat backend. Build one per process and
// share it; the concurrency cap only holds across callers of the same value.
type Gateway struct {
	client ChatClient
	sem    *semaphore.Weighted
	cfg    Config
	logger *zap.Logger
}

// New creates a Gateway. Zero config fields take the package defaults.
func New(client ChatClient, cfg Config, logger *zap.Logger) *Gateway {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Retries < 0 {
		cfg.Retry.Retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		client: client,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cfg:    cfg,
		logger: logger,
	}
}

// Complete sends msgs to the model and returns the assistant text.
//
// The prompt is trimmed to the configured character cap before sending. Each
// attempt holds one concurrency slot; the slot is released while waiting to
// retry. When every attempt fails the result is a *domain.UpstreamError,
// unless ctx ended first, in which case ctx's error is returned.
func (g *Gateway) Complete(ctx context.Context, msgs []domain.Message, opts ...CallOption) (string, error) {
	o := callOptions{timeout: g.cfg.Timeout, stream: g.cfg.Stream, retries: g.cfg.Retry.Retries}
	for _, opt := range opts {
		opt(&o)
	}

	msgs, trimmed := Trim(msgs, g.cfg.MaxPromptChars)
	if trimmed {
		metrics.LLMPromptTruncationsTotal.Inc()
		g.logger.Debug("Prompt trimmed", zap.Int("max_chars", g.cfg.MaxPromptChars))
	}

	req := ChatRequest{Messages: msgs, Stream: o.stream}
	attempts := o.retries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := g.attempt(ctx, req, o.timeout)
		if err == nil {
			metrics.LLMRequestsTotal.WithLabelValues(g.cfg.Provider, g.cfg.Model, "success").Inc()
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == attempts {
			attempts = attempt
			break
		}

		metrics.LLMRetriesTotal.WithLabelValues(g.cfg.Provider, g.cfg.Model).Inc()
		g.logger.Warn("LLM attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", g.cfg.Retry.Backoff),
			zap.Error(err),
		)
		if werr := g.cfg.Retry.Wait(ctx); werr != nil {
			attempts = attempt
			break
		}
	}

	if err := ctx.Err(); err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(g.cfg.Provider, g.cfg.Model, "canceled").Inc()
		g.logger.Debug("LLM call abandoned by caller", zap.Int("attempts", attempts), zap.Error(lastErr))
		return "", fmt.Errorf("llm call: %w", err)
	}

	metrics.LLMRequestsTotal.WithLabelValues(g.cfg.Provider, g.cfg.Model, "error").Inc()
	g.logger.Error("LLM call failed",
		zap.String("provider", g.cfg.Provider),
		zap.String("model", g.cfg.Model),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return "", domain.NewUpstreamError(attempts, lastErr)
}

func (g *Gateway) attempt(ctx context.Context, req ChatRequest, timeout time.Duration) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire llm slot: %w", err)
	}
	defer g.sem.Release(1)

	metrics.LLMInFlight.Inc()
	defer metrics.LLMInFlight.Dec()

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := g.client.Chat(attemptCtx, req)
	metrics.LLMRequestDuration.WithLabelValues(g.cfg.Provider, g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("chat timed out after %s: %w", timeout, err)
		}
		return "", fmt.Errorf("chat: %w", err)
	}
	return text, nil
}

// HealthCheck probes the chat backend when the client supports it.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	hc, ok := g.client.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	return nil
}
