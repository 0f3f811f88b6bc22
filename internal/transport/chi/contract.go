package chi

import (
	"context"
	"io"

	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	healthuc "github.com/kailas-cloud/lessontutor/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/lessontutor/internal/usecase/session"
)

// LessonService creates and serves published lessons.
type LessonService interface {
	Create(ctx context.Context, title, text string) (domlesson.Summary, error)
	List(ctx context.Context) ([]domlesson.Summary, error)
	Get(ctx context.Context, id string) (plan.Plan, error)
	Delete(ctx context.Context, id string) error
}

// SessionService runs tutoring sessions.
type SessionService interface {
	Start(ctx context.Context, userID, lessonID string) (sessionuc.Started, error)
	Current(ctx context.Context, sessionID string) (string, error)
	Next(ctx context.Context, sessionID string) (string, error)
	Ask(ctx context.Context, sessionID, question string) (string, error)
	End(ctx context.Context, sessionID string) error
}

// HealthService reports dependency health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Supported(name string) bool
	Extract(name string, r io.ReaderAt, size int64) (string, error)
}
