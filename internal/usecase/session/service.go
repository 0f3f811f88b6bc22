// Package session drives a learner through a lesson plan one micro-section
// at a time and answers questions grounded in the lesson text.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	"github.com/kailas-cloud/lessontutor/internal/domain/session"
	"github.com/kailas-cloud/lessontutor/internal/logger"
	"github.com/kailas-cloud/lessontutor/internal/usecase/gateway"
	"github.com/kailas-cloud/lessontutor/internal/usecase/retrieval"
)

// DefaultQATopK is the number of chunks retrieved for a question.
const DefaultQATopK = 4

// Config tunes the tutoring service.
type Config struct {
	QATopK int
}

// Started is the result of Start.
type Started struct {
	SessionID string
	Content   string
}

// Service runs tutoring sessions.
type Service struct {
	lessons  LessonLoader
	store    Store
	searcher Searcher
	llm      Completer
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Service.
func New(lessons LessonLoader, store Store, searcher Searcher, llm Completer, cfg Config, logger *zap.Logger) *Service {
	if cfg.QATopK <= 0 {
		cfg.QATopK = DefaultQATopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		lessons:  lessons,
		store:    store,
		searcher: searcher,
		llm:      llm,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Start opens a session for userID on lessonID and returns the opening
// narration. The session id is the user id; an empty user id gets a random
// one. An existing session under the same id is replaced.
func (s *Service) Start(ctx context.Context, userID, lessonID string) (Started, error) {
	p, idx, err := s.lessons.Load(ctx, lessonID)
	if err != nil {
		return Started{}, fmt.Errorf("load lesson %q: %w", lessonID, err)
	}

	id := strings.TrimSpace(userID)
	if id == "" {
		id = uuid.NewString()
	}

	sess := session.New(id, lessonID, p, idx, s.now())
	sess.Lock()
	defer sess.Unlock()

	s.store.Put(id, sess)
	logger.FromContextOr(ctx, s.logger).Info("Session started",
		zap.String("session_id", id),
		zap.String("lesson_id", lessonID),
	)

	return Started{SessionID: id, Content: s.current(sess)}, nil
}

// Current returns the narration for the micro-section under the cursor. The
// first call after Start includes the opening framing; later calls return
// the bare text. An exhausted session returns the completion message.
func (s *Service) Current(_ context.Context, sessionID string) (string, error) {
	sess, err := s.acquire(sessionID)
	if err != nil {
		return "", err
	}
	defer sess.Unlock()

	return s.current(sess), nil
}

// Next advances the cursor and returns the framed narration. Once the plan
// is exhausted every call returns the completion message.
func (s *Service) Next(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.acquire(sessionID)
	if err != nil {
		return "", err
	}
	defer sess.Unlock()

	cursor, step := sess.Plan.Advance(sess.Cursor)
	sess.Cursor = cursor

	switch step {
	case plan.StepMicro:
		return continuing(s.current(sess)), nil
	case plan.StepSubtopic:
		_, sub, _, _ := sess.Plan.At(cursor)
		return newSubtopic(sub.Title, s.current(sess)), nil
	case plan.StepTopic:
		topic, _, _, _ := sess.Plan.At(cursor)
		return newTopic(topic.Title, s.current(sess)), nil
	default:
		logger.FromContextOr(ctx, s.logger).Debug("Lesson completed", zap.String("session_id", sessionID))
		return CompletionMessage, nil
	}
}

// Ask answers question using the chunks of the lesson closest to it and the
// learner's current position. The cursor does not move. Model failures are
// returned as *domain.UpstreamError.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (string, error) {
	sess, err := s.acquire(sessionID)
	if err != nil {
		return "", err
	}
	defer sess.Unlock()

	cursor := sess.Cursor
	if sess.Done() {
		cursor = sess.Plan.Last()
	}
	topic, sub, _, _ := sess.Plan.At(cursor)

	chunks, err := s.searcher.Search(ctx, sess.Index, question, s.cfg.QATopK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}

	msgs := questionPrompt(question, topic.Title, sub.Title, sub.MicroSections, retrieval.Join(chunks))
	answer, err := s.llm.Complete(ctx, msgs, gateway.WithStream(false))
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	return answer, nil
}

// End removes the session.
func (s *Service) End(ctx context.Context, sessionID string) error {
	if !s.store.Remove(sessionID) {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	logger.FromContextOr(ctx, s.logger).Info("Session ended", zap.String("session_id", sessionID))
	return nil
}

// acquire returns the locked session for id.
func (s *Service) acquire(id string) (*session.Session, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	sess.Lock()
	sess.Touch(s.now())
	return sess, nil
}

// current must be called with the session locked.
func (s *Service) current(sess *session.Session) string {
	topic, sub, micro, ok := sess.Plan.At(sess.Cursor)
	if !ok {
		return CompletionMessage
	}
	if !sess.Started {
		sess.Started = true
		return opening(sess.Plan.Title, topic.Title, sub.Title, micro)
	}
	return micro
}
