package lesson

import (
	"fmt"
	"strconv"
	"time"

	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
)

const (
	fieldTitle     = "title"
	fieldCreatedAt = "created_at"
	fieldTopics    = "topics"
	fieldSubtopics = "subtopics"
	fieldMicro     = "micro_sections"
	fieldChunks    = "chunks"
)

func summaryToHash(s domlesson.Summary) map[string]string {
	return map[string]string{
		fieldTitle:     s.Title,
		fieldCreatedAt: strconv.FormatInt(s.CreatedAt.UnixMilli(), 10),
		fieldTopics:    strconv.Itoa(s.Topics),
		fieldSubtopics: strconv.Itoa(s.Subtopics),
		fieldMicro:     strconv.Itoa(s.MicroSections),
		fieldChunks:    strconv.Itoa(s.Chunks),
	}
}

func summaryFromHash(id string, m map[string]string) (domlesson.Summary, error) {
	s := domlesson.Summary{ID: id, Title: m[fieldTitle]}

	ints := []struct {
		field string
		dst   *int
	}{
		{fieldTopics, &s.Topics},
		{fieldSubtopics, &s.Subtopics},
		{fieldMicro, &s.MicroSections},
		{fieldChunks, &s.Chunks},
	}
	for _, f := range ints {
		raw, ok := m[f.field]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domlesson.Summary{}, fmt.Errorf("lesson %s: field %s: %w", id, f.field, err)
		}
		*f.dst = n
	}

	if raw, ok := m[fieldCreatedAt]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domlesson.Summary{}, fmt.Errorf("lesson %s: field %s: %w", id, fieldCreatedAt, err)
		}
		s.CreatedAt = time.UnixMilli(ms).UTC()
	}
	return s, nil
}
