package planner

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/lessontutor/internal/domain/chunk"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
)

// Fallback turns raw text pieces into a deterministic list used when the
// model returns nothing usable. With a Label, pieces are only counted and
// each entry is the label formatted with its 1-based position.
type Fallback struct {
	Max         int
	Placeholder string
	Label       string
}

// Apply trims pieces, drops empties, caps the result at Max and falls back
// to the placeholder when nothing is left.
func (f Fallback) Apply(pieces []string) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if f.Max > 0 && len(out) == f.Max {
			break
		}
		if f.Label != "" {
			p = fmt.Sprintf(f.Label, len(out)+1)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{f.Placeholder}
	}
	return out
}

var (
	topicFallback    = Fallback{Max: 5, Placeholder: plan.OverviewTitle, Label: "Part %d"}
	subtopicFallback = Fallback{Placeholder: plan.MainIdeasTitle}
	microFallback    = Fallback{Max: 6, Placeholder: plan.PlaceholderMicro}
)

const (
	topicFallbackChunkSize    = 2500
	topicFallbackChunkOverlap = 300
)

func fallbackTopics(text string) []string {
	return topicFallback.Apply(chunk.Texts(chunk.Split(text, topicFallbackChunkSize, topicFallbackChunkOverlap)))
}

func fallbackSubtopics() []string {
	return subtopicFallback.Apply(nil)
}

func fallbackMicro(excerpt string) []string {
	return microFallback.Apply(strings.Split(excerpt, "\n\n"))
}
