// Package chunk splits document text into overlapping, paragraph-aligned
// retrieval units.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize is the target chunk length in characters.
	DefaultSize = 800
	// DefaultOverlap is the number of trailing characters carried into the next chunk.
	DefaultOverlap = 200

	separator    = "\n\n"
	separatorLen = 2
)

var (
	blankLineRegex = regexp.MustCompile(`\n\s*\n+`)
	spaceRunRegex  = regexp.MustCompile(`[ \t]+`)
)

// Chunk is an immutable span of document text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int { return utf8.RuneCountInString(c.Text) }

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Paragraphs splits text on blank lines, trims each paragraph and collapses
// runs of spaces and tabs. Empty paragraphs are dropped.
func Paragraphs(text string) []string {
	parts := blankLineRegex.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, spaceRunRegex.ReplaceAllString(p, " "))
	}
	return out
}

// Split greedily packs paragraphs into chunks of roughly size characters.
//
// When a paragraph does not fit, the current chunk is closed and the next one
// is seeded with the last overlap characters of the closed chunk, unless the
// closed chunk is not longer than overlap. The seed is always carried whole,
// so a seeded chunk may exceed size by up to overlap+2 characters. Paragraphs
// are never split.
func Split(text string, size, overlap int) []Chunk {
	paragraphs := Paragraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var (
		chunks     []Chunk
		current    string
		currentLen int
	)

	for _, para := range paragraphs {
		paraLen := utf8.RuneCountInString(para)

		if current == "" {
			current, currentLen = para, paraLen
			continue
		}

		if currentLen+separatorLen+paraLen <= size {
			current += separator + para
			currentLen += separatorLen + paraLen
			continue
		}

		chunks = append(chunks, Chunk{Index: len(chunks), Text: current})

		if overlap > 0 && currentLen > overlap {
			current = tail(current, overlap) + separator + para
			currentLen = overlap + separatorLen + paraLen
		} else {
			current, currentLen = para, paraLen
		}
	}

	if current != "" {
		chunks = append(chunks, Chunk{Index: len(chunks), Text: current})
	}
	return chunks
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	r := []rune(s)
	if n >= len(r) {
		return s
	}
	return string(r[len(r)-n:])
}
