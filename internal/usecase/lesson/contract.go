package lesson

import (
	"context"
	"time"

	"github.com/kailas-cloud/lessontutor/internal/domain/chunk"
	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	"github.com/kailas-cloud/lessontutor/internal/domain/vector"
)

// Repository persists published lessons.
type Repository interface {
	Save(ctx context.Context, id string, p plan.Plan, idx *vector.Index, createdAt time.Time) error
	Plan(ctx context.Context, id string) (plan.Plan, error)
	Load(ctx context.Context, id string) (plan.Plan, *vector.Index, error)
	List(ctx context.Context) ([]domlesson.Summary, error)
	Delete(ctx context.Context, id string) error
}

// IndexBuilder embeds chunks into a searchable index.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []chunk.Chunk) (*vector.Index, error)
}

// Planner turns document text into a plan.
type Planner interface {
	Generate(ctx context.Context, title, text string, idx *vector.Index) plan.Plan
}
