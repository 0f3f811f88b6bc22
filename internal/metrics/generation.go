package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Lesson generation and session metrics.
var (
	PlansGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lessontutor",
			Name:      "plans_generated_total",
			Help:      "Lesson plans generated",
		},
	)

	PlanGenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lessontutor",
			Name:      "plan_generation_duration_seconds",
			Help:      "Wall time of one plan generation",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	PlanFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lessontutor",
			Name:      "plan_fallbacks_total",
			Help:      "Deterministic fallbacks used instead of model output",
		},
		[]string{"pass"}, // "topics" / "subtopics" / "micro"
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lessontutor",
			Name:      "sessions_active",
			Help:      "Tutoring sessions held in memory",
		},
	)
)

var generationOnce sync.Once

// RegisterGenerationMetrics registers plan and session metrics.
func RegisterGenerationMetrics() {
	generationOnce.Do(func() {
		prometheus.MustRegister(PlansGeneratedTotal, PlanGenerationDuration, PlanFallbacksTotal, SessionsActive)
	})
}
