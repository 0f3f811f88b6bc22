package session

import (
	"context"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/domain/chunk"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	"github.com/kailas-cloud/lessontutor/internal/domain/session"
	"github.com/kailas-cloud/lessontutor/internal/domain/vector"
	"github.com/kailas-cloud/lessontutor/internal/usecase/gateway"
)

// LessonLoader loads a published plan together with its runtime index.
type LessonLoader interface {
	Load(ctx context.Context, lessonID string) (plan.Plan, *vector.Index, error)
}

// Store holds live sessions.
type Store interface {
	Get(id string) (*session.Session, bool)
	Put(id string, s *session.Session)
	Remove(id string) bool
}

// Searcher retrieves chunks relevant to a question.
type Searcher interface {
	Search(ctx context.Context, idx *vector.Index, query string, k int) ([]chunk.Chunk, error)
}

// Completer answers a prompt with the language model.
type Completer interface {
	Complete(ctx context.Context, msgs []domain.Message, opts ...gateway.CallOption) (string, error)
}
