package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/lessontutor/internal/domain"
)

// --- Mocks ---

type mockChatClient struct {
	chatFn func(ctx context.Context, req ChatRequest) (string, error)
	calls  atomic.Int32
}

func (m *mockChatClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	m.calls.Add(1)
	return m.chatFn(ctx, req)
}

type healthyChatClient struct {
	mockChatClient
	healthErr error
}

func (h *healthyChatClient) HealthCheck(_ context.Context) error { return h.healthErr }

func noBackoff() RetryPolicy { return RetryPolicy{Retries: 1} }

// --- Tests ---

func TestComplete_Success(t *testing.T) {
	client := &mockChatClient{chatFn: func(_ context.Context, req ChatRequest) (string, error) {
		if !req.Stream {
			t.Error("stream should default to the configured value")
		}
		return "hello", nil
	}}
	g := New(client, Config{Stream: true, Retry: noBackoff()}, nil)

	got, err := g.Complete(context.Background(), []domain.Message{domain.UserMessage("hi")})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" || client.calls.Load() != 1 {
		t.Errorf("got %q after %d calls", got, client.calls.Load())
	}
}

func TestComplete_OptionsOverrideDefaults(t *testing.T) {
	client := &mockChatClient{chatFn: func(ctx context.Context, req ChatRequest) (string, error) {
		if req.Stream {
			t.Error("WithStream(false) ignored")
		}
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > 5*time.Second {
			t.Error("WithTimeout not applied to the attempt")
		}
		return "", errors.New("boom")
	}}
	g := New(client, Config{Stream: true, Retry: noBackoff()}, nil)

	_, err := g.Complete(context.Background(), nil,
		WithStream(false), WithTimeout(5*time.Second), WithRetries(3))

	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Attempts != 4 {
		t.Fatalf("expected 4 attempts, got %v", err)
	}
	if client.calls.Load() != 4 {
		t.Errorf("client called %d times", client.calls.Load())
	}
}

func TestComplete_RetryThenSuccess(t *testing.T) {
	client := &mockChatClient{}
	client.chatFn = func(_ context.Context, _ ChatRequest) (string, error) {
		if client.calls.Load() == 1 {
			return "", errors.New("connection reset")
		}
		return "recovered", nil
	}
	g := New(client, Config{Retry: noBackoff()}, nil)

	got, err := g.Complete(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "recovered" {
		t.Errorf("got %q", got)
	}
}

func TestComplete_ExhaustedIsUpstreamError(t *testing.T) {
	cause := errors.New("status 500")
	client := &mockChatClient{chatFn: func(_ context.Context, _ ChatRequest) (string, error) {
		return "", cause
	}}
	g := New(client, Config{Retry: noBackoff()}, nil)

	_, err := g.Complete(context.Background(), nil)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("last failure should be preserved")
	}
	if client.calls.Load() != 2 {
		t.Errorf("expected 2 attempts (1 + 1 retry), got %d", client.calls.Load())
	}
}

func TestComplete_BackoffHonoursCancel(t *testing.T) {
	client := &mockChatClient{chatFn: func(_ context.Context, _ ChatRequest) (string, error) {
		return "", errors.New("fail")
	}}
	g := New(client, Config{Retry: RetryPolicy{Retries: 5, Backoff: time.Hour}}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.Complete(ctx, nil)
	if time.Since(start) > 5*time.Second {
		t.Fatal("backoff ignored cancellation")
	}
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrUpstream) {
		t.Errorf("expected the caller's deadline error, got %v", err)
	}
	if client.calls.Load() != 1 {
		t.Errorf("expected one attempt before cancel, got %d", client.calls.Load())
	}
}

func TestComplete_CallerCancelIsNotUpstream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &mockChatClient{chatFn: func(ctx context.Context, _ ChatRequest) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}}
	g := New(client, Config{Retry: noBackoff()}, nil)

	_, err := g.Complete(ctx, []domain.Message{domain.UserMessage("hi")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		t.Errorf("abandoned call must not be reported as upstream failure: %v", err)
	}
	if client.calls.Load() != 1 {
		t.Errorf("no retry after cancel, got %d calls", client.calls.Load())
	}
}

func TestComplete_TrimsCopyOfPrompt(t *testing.T) {
	long := strings.Repeat("x", 100)
	msgs := []domain.Message{domain.SystemMessage("sys"), domain.UserMessage(long)}

	client := &mockChatClient{chatFn: func(_ context.Context, req ChatRequest) (string, error) {
		total := 0
		for _, m := range req.Messages {
			total += m.Len()
		}
		if total != 50 {
			t.Errorf("sent %d chars, want 50", total)
		}
		return "ok", nil
	}}
	g := New(client, Config{MaxPromptChars: 50, Retry: noBackoff()}, nil)

	if _, err := g.Complete(context.Background(), msgs); err != nil {
		t.Fatal(err)
	}
	if msgs[1].Content != long {
		t.Error("caller messages were mutated")
	}
}

func TestComplete_ConcurrencyCap(t *testing.T) {
	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	client := &mockChatClient{chatFn: func(_ context.Context, _ ChatRequest) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}}
	g := New(client, Config{MaxConcurrent: 2, Retry: noBackoff()}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Complete(context.Background(), nil); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency %d exceeds cap 2", p)
	}
	if client.calls.Load() != 8 {
		t.Errorf("expected 8 calls, got %d", client.calls.Load())
	}
}

func TestHealthCheck(t *testing.T) {
	plain := New(&mockChatClient{}, Config{}, nil)
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Errorf("client without health support should pass, got %v", err)
	}

	down := New(&healthyChatClient{healthErr: errors.New("refused")}, Config{}, nil)
	if err := down.HealthCheck(context.Background()); err == nil {
		t.Error("expected health error")
	}
}
