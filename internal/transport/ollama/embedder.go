package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/metrics"
)

const provider = "ollama"

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// Embedder implements domain.Embedder on /api/embed.
type Embedder struct {
	client
}

// NewEmbedder creates an embedding client.
func NewEmbedder(cfg Config) *Embedder {
	return &Embedder{client: newClient(cfg)}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// Embed vectorizes one text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed vectorizes texts in one request. Errors wrap
// domain.ErrEmbeddingProviderError.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	start := time.Now()

	resp, err := e.post(ctx, "/api/embed", embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return domain.BatchEmbeddingResult{}, e.fail(errorType(err), err)
	}
	defer resp.Body.Close()

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.BatchEmbeddingResult{}, e.fail("decode_error", err)
	}
	if len(out.Embeddings) != len(texts) {
		return domain.BatchEmbeddingResult{}, e.fail("empty_response",
			fmt.Errorf("got %d embeddings for %d texts", len(out.Embeddings), len(texts)))
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, e.model).Observe(time.Since(start).Seconds())
	if out.PromptEvalCount > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, e.model, "prompt").Add(float64(out.PromptEvalCount))
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, e.model, "total").Add(float64(out.PromptEvalCount))
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   out.Embeddings,
		PromptTokens: out.PromptEvalCount,
		TotalTokens:  out.PromptEvalCount,
	}, nil
}

func (e *Embedder) fail(kind string, err error) error {
	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, e.model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(provider, e.model, kind).Inc()
	return fmt.Errorf("ollama embed: %w: %w", err, domain.ErrEmbeddingProviderError)
}

func errorType(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return "api_error"
	}
	return "transport_error"
}
