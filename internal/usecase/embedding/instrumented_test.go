package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/metrics"
)

type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	batchErr   error
	batchSizes []int
	healthErr  error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = []float32{float32(len(text))}
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

func (m *mockEmbedder) HealthCheck(context.Context) error { return m.healthErr }

// plainMockEmbedder implements only Embedder, not BatchEmbedder.
type plainMockEmbedder struct {
	result domain.EmbeddingResult
	calls  int
}

func (m *plainMockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, nil
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.1, 0.2, 0.3},
		TotalTokens: 100,
	}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", 0, zap.NewNop())

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.TotalTokens != 100 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	cause := fmt.Errorf("api error: %w", domain.ErrEmbeddingProviderError)
	p := NewInstrumentedEmbedder(&mockEmbedder{err: cause}, "test", "model", 0, nil)

	if _, err := p.Embed(context.Background(), "hello"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestInstrumentedEmbedder_BatchEmbed_SplitsIntoSubBatches(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{TotalTokens: 10}}
	p := NewInstrumentedEmbedder(inner, "test", "model", 2, zap.NewNop())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	res, err := p.BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fmt.Sprint(inner.batchSizes) != "[2 2 1]" {
		t.Errorf("sub-batch sizes = %v, want [2 2 1]", inner.batchSizes)
	}
	if len(res.Embeddings) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))
	}
	for i, text := range texts {
		if res.Embeddings[i][0] != float32(len(text)) {
			t.Errorf("embedding %d out of order: %v", i, res.Embeddings[i])
		}
	}
	if res.TotalTokens != 50 {
		t.Errorf("total tokens = %d, want 50", res.TotalTokens)
	}
}

func TestInstrumentedEmbedder_RecordsBatchSizes(t *testing.T) {
	hist := metrics.EmbeddingBatchSize.WithLabelValues("sizes-test", "model")

	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "sizes-test", "model", 3, zap.NewNop())
	if _, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c", "d"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := &dto.Metric{}
	if err := hist.(prometheus.Histogram).Write(m); err != nil {
		t.Fatal(err)
	}
	if m.GetHistogram().GetSampleCount() != 2 || m.GetHistogram().GetSampleSum() != 4 {
		t.Errorf("batch sizes: count=%d sum=%v, want 2 and 4",
			m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
	}
}

func TestInstrumentedEmbedder_BatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "model", 0, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil || len(inner.batchSizes) != 0 {
		t.Errorf("expected no provider call for empty input")
	}
}

func TestInstrumentedEmbedder_BatchEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("api error")}
	p := NewInstrumentedEmbedder(inner, "test", "model", 0, zap.NewNop())

	if _, err := p.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestInstrumentedEmbedder_BatchEmbed_FallbackToSingle(t *testing.T) {
	inner := &plainMockEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.1},
		TotalTokens: 5,
	}}
	p := NewInstrumentedEmbedder(inner, "test", "model", 0, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || inner.calls != 2 {
		t.Errorf("expected 2 fallback Embed calls, got %d (%d vectors)", inner.calls, len(res.Embeddings))
	}
}

func TestInstrumentedEmbedder_HealthCheck(t *testing.T) {
	down := errors.New("down")
	p := NewInstrumentedEmbedder(&mockEmbedder{healthErr: down}, "test", "model", 0, nil)
	if err := p.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected delegated error, got %v", err)
	}

	plain := NewInstrumentedEmbedder(&plainMockEmbedder{}, "test", "model", 0, nil)
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Errorf("embedder without health check must report healthy, got %v", err)
	}
}
