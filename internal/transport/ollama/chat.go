package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/usecase/gateway"
)

// maxFrameBytes bounds a single NDJSON frame; longer frames are skipped.
const maxFrameBytes = 1 << 20

var _ gateway.ChatClient = (*Chat)(nil)

// Chat implements gateway.ChatClient on /api/chat.
type Chat struct {
	client
}

// NewChat creates a chat client.
func NewChat(cfg Config) *Chat {
	return &Chat{client: newClient(cfg)}
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
	Stream   bool             `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Chat sends one completion request. In streaming mode the NDJSON fragments
// are concatenated until a frame reports done or the body ends.
func (c *Chat) Chat(ctx context.Context, req gateway.ChatRequest) (string, error) {
	resp, err := c.post(ctx, "/api/chat", chatRequest{Model: c.model, Messages: req.Messages, Stream: req.Stream})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !req.Stream {
		var out chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode chat response: %w", err)
		}
		if out.Error != "" {
			return "", fmt.Errorf("ollama: %s", out.Error)
		}
		return out.Message.Content, nil
	}

	var sb strings.Builder
	br := bufio.NewReaderSize(resp.Body, 64*1024)
	for {
		line, oversized, err := readFrame(br, maxFrameBytes)
		switch {
		case oversized:
			c.logger.Debug("Skipping oversized stream frame", zap.Int("limit", maxFrameBytes))
		case len(line) > 0:
			var frame chatResponse
			if uerr := json.Unmarshal(line, &frame); uerr != nil {
				c.logger.Debug("Skipping undecodable stream frame", zap.ByteString("frame", line))
				break
			}
			if frame.Error != "" {
				return "", fmt.Errorf("ollama: %s", frame.Error)
			}
			sb.WriteString(frame.Message.Content)
			if frame.Done {
				return sb.String(), nil
			}
		}
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("read chat stream: %w", err)
		}
	}
}

// readFrame reads one newline-terminated stream frame. A frame longer than
// limit is consumed up to its newline and reported as oversized.
func readFrame(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var buf []byte
	oversized := false
	for {
		part, err := r.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(part) > limit {
				oversized, buf = true, nil
			} else {
				buf = append(buf, part...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimSpace(buf), oversized, err
	}
}
