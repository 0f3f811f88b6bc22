package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LLM gateway metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lessontutor",
			Name:      "llm_requests_total",
			Help:      "Chat completions by final outcome",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lessontutor",
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of one chat attempt in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"provider", "model"},
	)

	LLMRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lessontutor",
			Name:      "llm_retries_total",
			Help:      "Chat attempts retried after a failure",
		},
		[]string{"provider", "model"},
	)

	LLMInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lessontutor",
			Name:      "llm_in_flight",
			Help:      "Chat calls currently holding a concurrency slot",
		},
	)

	LLMPromptTruncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lessontutor",
			Name:      "llm_prompt_truncations_total",
			Help:      "Prompts trimmed to fit the character cap",
		},
	)
)

var llmOnce sync.Once

// RegisterLLMMetrics registers the gateway metrics with the default registry.
func RegisterLLMMetrics() {
	llmOnce.Do(func() {
		prometheus.MustRegister(
			LLMRequestsTotal,
			LLMRequestDuration,
			LLMRetriesTotal,
			LLMInFlight,
			LLMPromptTruncationsTotal,
		)
	})
}
