package gateway

import (
	"context"

	"github.com/kailas-cloud/lessontutor/internal/domain"
)

// ChatRequest is one completion attempt handed to the wire client.
type ChatRequest struct {
	Messages []domain.Message
	Stream   bool
}

// ChatClient performs a single chat completion against a model server.
// Implementations return the full assistant text; streaming is assembled
// by the client.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}
