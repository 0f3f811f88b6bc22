// Package retrieval embeds chunks into a vector index and answers
// similarity queries against it.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/domain/chunk"
	"github.com/kailas-cloud/lessontutor/internal/domain/vector"
)

const (
	// DefaultInitialK is the first number of chunks fetched for planning context.
	DefaultInitialK = 6
	// DefaultMinContextChars triggers one widened re-query when the context is shorter.
	DefaultMinContextChars = 900
)

// Config tunes adaptive context retrieval.
type Config struct {
	InitialK        int
	MinContextChars int
}

// Service builds and queries vector indexes.
type Service struct {
	embedder domain.Embedder
	queries  domain.Embedder
	cfg      Config
}

// New creates a Service. Zero config fields take the package defaults.
func New(embedder domain.Embedder, cfg Config) *Service {
	if cfg.InitialK <= 0 {
		cfg.InitialK = DefaultInitialK
	}
	if cfg.MinContextChars <= 0 {
		cfg.MinContextChars = DefaultMinContextChars
	}
	return &Service{embedder: embedder, queries: embedder, cfg: cfg}
}

// WithQueryEmbedder embeds queries with e instead of the chunk embedder.
// Both must produce vectors of the same model.
func (s *Service) WithQueryEmbedder(e domain.Embedder) *Service {
	if e != nil {
		s.queries = e
	}
	return s
}

// Build embeds every chunk and returns a fresh index over them.
func (s *Service) Build(ctx context.Context, chunks []chunk.Chunk) (*vector.Index, error) {
	res, err := domain.EmbedAll(ctx, s.embedder, chunk.Texts(chunks))
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if u := domain.UsageFromContext(ctx); u != nil {
		u.AddTokens(res.TotalTokens)
	}

	idx, err := vector.New(chunks, res.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return idx, nil
}

// Search returns the k chunks closest to query.
func (s *Service) Search(ctx context.Context, idx *vector.Index, query string, k int) ([]chunk.Chunk, error) {
	if idx.Len() == 0 || k <= 0 {
		return nil, nil
	}
	q, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return search(idx, q, k)
}

// Context returns the chunks most relevant to query joined by blank lines.
// When the first InitialK results are shorter than MinContextChars and the
// index holds more chunks, the query is repeated once with twice the k.
func (s *Service) Context(ctx context.Context, idx *vector.Index, query string) (string, error) {
	if idx.Len() == 0 {
		return "", nil
	}
	q, err := s.embedQuery(ctx, query)
	if err != nil {
		return "", err
	}

	k := min(s.cfg.InitialK, idx.Len())
	chunks, err := search(idx, q, k)
	if err != nil {
		return "", err
	}
	text := Join(chunks)

	if utf8.RuneCountInString(text) < s.cfg.MinContextChars && k < idx.Len() {
		chunks, err = search(idx, q, min(2*k, idx.Len()))
		if err != nil {
			return "", err
		}
		text = Join(chunks)
	}
	return text, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	res, err := s.queries.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if u := domain.UsageFromContext(ctx); u != nil {
		u.AddTokens(res.TotalTokens)
	}
	return res.Embedding, nil
}

func search(idx *vector.Index, q []float32, k int) ([]chunk.Chunk, error) {
	hits, err := idx.Search(q, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := make([]chunk.Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk
	}
	return out, nil
}

// Join concatenates chunk texts with blank lines.
func Join(chunks []chunk.Chunk) string {
	return strings.Join(chunk.Texts(chunks), "\n\n")
}
