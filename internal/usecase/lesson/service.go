// Package lesson turns uploaded documents into published lessons: chunk,
// index, plan and persist.
package lesson

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/domain/chunk"
	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	"github.com/kailas-cloud/lessontutor/internal/domain/vector"
	"github.com/kailas-cloud/lessontutor/internal/logger"
)

// Config sets the chunking used for both the planning and the runtime index.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Service creates and reads lessons.
type Service struct {
	repo    Repository
	indexer IndexBuilder
	planner Planner
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Service. Zero chunking values take the chunk package defaults.
func New(repo Repository, indexer IndexBuilder, planner Planner, cfg Config, logger *zap.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = min(chunk.DefaultOverlap, cfg.ChunkSize/2)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		indexer: indexer,
		planner: planner,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Create plans text and publishes it under an id derived from title. An
// existing lesson with the same id is replaced as a whole.
func (s *Service) Create(ctx context.Context, title, text string) (domlesson.Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domlesson.Summary{}, fmt.Errorf("%w: no text", domain.ErrInvalidDocument)
	}
	title = strings.TrimSpace(title)
	id := domlesson.NewID(title)
	if title == "" {
		title = id
	}
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("lesson_id", id))
	start := s.now()

	chunks := s.chunks(text)
	log.Info("Building lesson", zap.Int("chunks", len(chunks)), zap.Int("chars", len(text)))

	planning, err := s.indexer.Build(ctx, chunks)
	if err != nil {
		return domlesson.Summary{}, fmt.Errorf("build planning index: %w", err)
	}

	p := s.planner.Generate(ctx, title, text, planning)

	runtime, err := s.indexer.Build(ctx, chunks)
	if err != nil {
		return domlesson.Summary{}, fmt.Errorf("build runtime index: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return domlesson.Summary{}, fmt.Errorf("lesson %s not published: %w", id, err)
	}

	created := s.now().UTC()
	if err := s.repo.Save(ctx, id, p, runtime, created); err != nil {
		return domlesson.Summary{}, fmt.Errorf("publish lesson %s: %w", id, err)
	}

	nt, ns, nm := p.Size()
	log.Info("Lesson published",
		zap.Int("topics", nt),
		zap.Int("subtopics", ns),
		zap.Int("micro_sections", nm),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return domlesson.Summary{
		ID:            id,
		Title:         p.Title,
		CreatedAt:     created,
		Topics:        nt,
		Subtopics:     ns,
		MicroSections: nm,
		Chunks:        runtime.Len(),
	}, nil
}

// List returns the published lessons.
func (s *Service) List(ctx context.Context) ([]domlesson.Summary, error) {
	return s.repo.List(ctx)
}

// Get returns the plan of a published lesson.
func (s *Service) Get(ctx context.Context, id string) (plan.Plan, error) {
	return s.repo.Plan(ctx, id)
}

// Load returns the plan with its runtime index, for tutoring sessions.
func (s *Service) Load(ctx context.Context, id string) (plan.Plan, *vector.Index, error) {
	return s.repo.Load(ctx, id)
}

// Delete removes a published lesson. Running sessions keep their copy.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.FromContextOr(ctx, s.logger).Info("Lesson deleted", zap.String("lesson_id", id))
	return nil
}

func (s *Service) chunks(text string) []chunk.Chunk {
	chunks := chunk.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		chunks = []chunk.Chunk{{Index: 0, Text: text}}
	}
	return chunks
}
