package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewExample()
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Error("expected fallback for empty context")
	}

	reqLogger := zap.NewExample().With(zap.String("request_id", "r1"))
	ctx := ContextWithLogger(context.Background(), reqLogger)
	if got := FromContextOr(ctx, fallback); got != reqLogger {
		t.Error("expected request logger")
	}
	if got := FromContext(ctx); got != reqLogger {
		t.Error("FromContext should return the stored logger")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("local", "debug"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLogger("prod"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLogger("mars"); err == nil {
		t.Error("unknown env must fail")
	}
	if _, err := NewLogger("local", "loud"); err == nil {
		t.Error("bad level must fail")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info must be disabled at warn level")
	}
	if !l.Core().Enabled(zap.ErrorLevel) {
		t.Error("error must be enabled at warn level")
	}
}

func TestNewLogger_TestEnvDiscards(t *testing.T) {
	l, err := NewLogger("test", "debug")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.ErrorLevel) {
		t.Error("test logger should discard every entry")
	}
}
