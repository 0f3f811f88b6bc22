package planner

import (
	"context"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/domain/vector"
	"github.com/kailas-cloud/lessontutor/internal/usecase/gateway"
)

// Completer sends a prompt to the language model.
type Completer interface {
	Complete(ctx context.Context, msgs []domain.Message, opts ...gateway.CallOption) (string, error)
}

// ContextRetriever returns planning context for a query.
type ContextRetriever interface {
	Context(ctx context.Context, idx *vector.Index, query string) (string, error)
}
