// Package plan models a generated lesson: Title → Topics → Subtopics →
// micro-sections, plus the cursor used to walk it.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/lessontutor/internal/domain"
)

const (
	// OverviewTitle names the single topic used when nothing else is available.
	OverviewTitle = "Overview"
	// MainIdeasTitle names the fallback subtopic.
	MainIdeasTitle = "Main Ideas"
	// PlaceholderMicro is the fallback micro-section text.
	PlaceholderMicro = "Let's briefly review this concept. (Content missing)"
)

// Plan is a finished lesson plan. It is immutable once published.
type Plan struct {
	Title  string  `json:"title"`
	Topics []Topic `json:"topics"`
}

// Topic is a major section of the lesson.
type Topic struct {
	ID        int        `json:"topic_id"`
	Title     string     `json:"title"`
	Subtopics []Subtopic `json:"subtopics"`
}

// Subtopic groups the micro-sections narrated one at a time.
type Subtopic struct {
	ID            int      `json:"sub_id"`
	Title         string   `json:"title"`
	MicroSections []string `json:"micro_sections"`
}

// Size returns the number of topics, subtopics and micro-sections.
func (p Plan) Size() (topics, subtopics, micros int) {
	topics = len(p.Topics)
	for _, t := range p.Topics {
		subtopics += len(t.Subtopics)
		for _, s := range t.Subtopics {
			micros += len(s.MicroSections)
		}
	}
	return topics, subtopics, micros
}

// Normalize fills empty levels with fallback children so every topic has at
// least one subtopic and every subtopic at least one micro-section. IDs are
// renumbered from 1 where missing.
func (p *Plan) Normalize() {
	if len(p.Topics) == 0 {
		p.Topics = []Topic{{Title: OverviewTitle}}
	}
	for ti := range p.Topics {
		t := &p.Topics[ti]
		if t.ID <= 0 {
			t.ID = ti + 1
		}
		if len(t.Subtopics) == 0 {
			t.Subtopics = []Subtopic{{Title: MainIdeasTitle}}
		}
		for si := range t.Subtopics {
			s := &t.Subtopics[si]
			if s.ID <= 0 {
				s.ID = si + 1
			}
			if len(s.MicroSections) == 0 {
				s.MicroSections = []string{PlaceholderMicro}
			}
		}
	}
}

type legacySection struct {
	Title        string `json:"title"`
	TeachingText string `json:"teaching_text"`
	Content      string `json:"content"`
}

type envelope struct {
	Title    *string         `json:"title"`
	Topics   []Topic         `json:"topics"`
	Sections []legacySection `json:"sections"`
}

// Decode parses a stored plan. Plans written in the older flat "sections"
// layout are converted into a single topic whose subtopics are the sections.
// The result is normalized.
func Decode(lessonID string, data []byte) (Plan, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Plan{}, fmt.Errorf("decode plan %q: %w", lessonID, err)
	}

	var p Plan
	switch {
	case env.Topics != nil:
		p = Plan{Topics: env.Topics}
		if env.Title != nil {
			p.Title = *env.Title
		}
	case env.Sections != nil:
		p = fromSections(lessonID, env)
	default:
		return Plan{}, fmt.Errorf("decode plan %q: no topics: %w", lessonID, domain.ErrInvalidDocument)
	}

	if strings.TrimSpace(p.Title) == "" {
		p.Title = lessonID
	}
	p.Normalize()
	return p, nil
}

func fromSections(lessonID string, env envelope) Plan {
	title, topicTitle := lessonID, "Lesson"
	if env.Title != nil {
		title, topicTitle = *env.Title, *env.Title
	}

	subs := make([]Subtopic, 0, len(env.Sections))
	for i, sec := range env.Sections {
		text := sec.TeachingText
		if text == "" {
			text = sec.Content
		}
		if text == "" {
			continue
		}
		subTitle := sec.Title
		if subTitle == "" {
			subTitle = fmt.Sprintf("Part %d", i+1)
		}
		subs = append(subs, Subtopic{ID: i + 1, Title: subTitle, MicroSections: []string{text}})
	}

	return Plan{
		Title:  title,
		Topics: []Topic{{ID: 1, Title: topicTitle, Subtopics: subs}},
	}
}

// Encode serializes the plan as indented JSON.
func Encode(p Plan) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return data, nil
}
