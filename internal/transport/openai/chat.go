package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/usecase/gateway"
)

var _ gateway.ChatClient = (*Chat)(nil)

// Chat implements gateway.ChatClient on /chat/completions.
type Chat struct {
	client *openai.Client
	model  string
}

// NewChat creates a chat client.
func NewChat(cfg *Config) *Chat {
	return &Chat{client: newClient(cfg), model: cfg.Model}
}

// Chat runs one completion. Streaming responses are concatenated from the
// delta frames.
func (c *Chat) Chat(ctx context.Context, req gateway.ChatRequest) (string, error) {
	creq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toMessages(req.Messages),
	}

	if !req.Stream {
		resp, err := c.client.CreateChatCompletion(ctx, creq)
		if err != nil {
			return "", fmt.Errorf("chat %s: %w", describeAPIError(err), err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("chat response has no choices")
		}
		return resp.Choices[0].Message.Content, nil
	}

	creq.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("chat %s: %w", describeAPIError(err), err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("read chat stream: %w", err)
		}
		for _, choice := range resp.Choices {
			sb.WriteString(choice.Delta.Content)
		}
	}
}

// HealthCheck verifies API availability.
func (c *Chat) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.client)
}

func toMessages(msgs []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
