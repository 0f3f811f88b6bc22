// Package planner turns document text into a three-level lesson plan with
// the language model, substituting deterministic fallbacks wherever the
// model output is unusable.
package planner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	"github.com/kailas-cloud/lessontutor/internal/domain/vector"
	"github.com/kailas-cloud/lessontutor/internal/logger"
	"github.com/kailas-cloud/lessontutor/internal/metrics"
	"github.com/kailas-cloud/lessontutor/internal/usecase/gateway"
)

const (
	// DefaultThrottle is the pause after every planning call.
	DefaultThrottle = 250 * time.Millisecond
	// DefaultJSONRetries is how many times a call is repeated when the
	// reply carries no JSON.
	DefaultJSONRetries = 2

	maxTopics    = 7
	maxSubtopics = 5
	maxMicro     = 7

	passTopics    = "topics"
	passSubtopics = "subtopics"
	passMicro     = "micro"
)

// Config tunes plan generation.
type Config struct {
	// Throttle is the pause after each model call. Negative disables it.
	Throttle time.Duration
	// Parallelism bounds concurrent micro-section passes within a topic.
	Parallelism int
	// JSONRetries is the number of repeats when a reply has no JSON. Zero means the default.
	JSONRetries int
}

// Service generates lesson plans.
type Service struct {
	llm       Completer
	retriever ContextRetriever
	cfg       Config
	logger    *zap.Logger
}

// New creates a Service.
func New(llm Completer, retriever ContextRetriever, cfg Config, logger *zap.Logger) *Service {
	if cfg.Throttle == 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.JSONRetries <= 0 {
		cfg.JSONRetries = DefaultJSONRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{llm: llm, retriever: retriever, cfg: cfg, logger: logger}
}

// Generate builds a plan for text, using idx for per-topic and per-subtopic
// context. It never fails: every level that the model cannot produce is
// filled from the document itself or from fixed placeholders.
func (s *Service) Generate(ctx context.Context, title, text string, idx *vector.Index) plan.Plan {
	start := time.Now()
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("lesson", title))

	topics := s.topics(ctx, log, text)
	p := plan.Plan{Title: title, Topics: make([]plan.Topic, len(topics))}

	for i, topic := range topics {
		subtopics := s.subtopics(ctx, log, idx, topic)
		p.Topics[i] = plan.Topic{
			ID:        i + 1,
			Title:     topic,
			Subtopics: s.fillSubtopics(ctx, log, idx, topic, subtopics),
		}
	}
	p.Normalize()

	elapsed := time.Since(start)
	if err := ctx.Err(); err != nil {
		log.Debug("Lesson plan generation canceled", zap.Duration("duration", elapsed), zap.Error(err))
		return p
	}
	metrics.PlansGeneratedTotal.Inc()
	metrics.PlanGenerationDuration.Observe(elapsed.Seconds())

	nt, ns, nm := p.Size()
	log.Info("Lesson plan generated",
		zap.Int("topics", nt),
		zap.Int("subtopics", ns),
		zap.Int("micro_sections", nm),
		zap.Duration("duration", elapsed),
	)
	return p
}

func (s *Service) topics(ctx context.Context, log *zap.Logger, text string) []string {
	topics := s.jsonList(ctx, log, passTopics, topicsPrompt(text), maxTopics)
	if len(topics) == 0 {
		topics = fallbackTopics(text)
		s.fellBack(ctx, log, passTopics, zap.Strings("topics", topics))
	}
	return topics
}

func (s *Service) subtopics(ctx context.Context, log *zap.Logger, idx *vector.Index, topic string) []string {
	excerpt := s.planningContext(ctx, log, idx, topic)
	subtopics := s.jsonList(ctx, log, passSubtopics, subtopicsPrompt(topic, excerpt), maxSubtopics)
	if len(subtopics) == 0 {
		subtopics = fallbackSubtopics()
		s.fellBack(ctx, log, passSubtopics, zap.String("topic", topic))
	}
	return subtopics
}

func (s *Service) micro(ctx context.Context, log *zap.Logger, idx *vector.Index, topic, subtopic string) []string {
	excerpt := s.planningContext(ctx, log, idx, topic+". "+subtopic)
	micro := s.jsonList(ctx, log, passMicro, microPrompt(topic, subtopic, excerpt), maxMicro)
	if len(micro) == 0 {
		micro = fallbackMicro(excerpt)
		s.fellBack(ctx, log, passMicro, zap.String("topic", topic), zap.String("subtopic", subtopic))
	}
	return micro
}

// fillSubtopics runs the micro-section pass for every subtopic of one topic,
// at most Parallelism at a time. Result order follows titles.
func (s *Service) fillSubtopics(
	ctx context.Context, log *zap.Logger, idx *vector.Index, topic string, titles []string,
) []plan.Subtopic {
	out := make([]plan.Subtopic, len(titles))

	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for i, title := range titles {
		g.Go(func() error {
			out[i] = plan.Subtopic{
				ID:            i + 1,
				Title:         title,
				MicroSections: s.micro(ctx, log, idx, topic, title),
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// jsonList asks the model for a JSON array of strings, repeating the call
// while the reply carries no JSON. Model failures count as failed attempts.
func (s *Service) jsonList(
	ctx context.Context, log *zap.Logger, pass string, msgs []domain.Message, maxItems int,
) []string {
	attempts := s.cfg.JSONRetries + 1
	var lastRaw string

	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := s.llm.Complete(ctx, msgs)
		s.throttle(ctx)
		if err != nil {
			log.Warn("Planning call failed",
				zap.String("pass", pass),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		lastRaw = raw
		if v, ok := gateway.ExtractJSON(raw); ok {
			return gateway.StringList(v, maxItems)
		}
	}

	if lastRaw != "" {
		log.Warn("No JSON in model output",
			zap.String("pass", pass),
			zap.String("raw", truncate(lastRaw, 500)),
		)
	}
	return nil
}

func (s *Service) planningContext(ctx context.Context, log *zap.Logger, idx *vector.Index, query string) string {
	text, err := s.retriever.Context(ctx, idx, query)
	if err != nil {
		log.Warn("Planning retrieval failed, continuing without context",
			zap.String("query", query),
			zap.Error(err),
		)
		return ""
	}
	return text
}

// fellBack records a fallback. A canceled plan is never published, so its
// fallbacks are not counted.
func (s *Service) fellBack(ctx context.Context, log *zap.Logger, pass string, fields ...zap.Field) {
	if ctx.Err() != nil {
		return
	}
	metrics.PlanFallbacksTotal.WithLabelValues(pass).Inc()
	log.Warn("Using fallback content", append([]zap.Field{zap.String("pass", pass)}, fields...)...)
}

func (s *Service) throttle(ctx context.Context) {
	if s.cfg.Throttle <= 0 {
		return
	}
	t := time.NewTimer(s.cfg.Throttle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
