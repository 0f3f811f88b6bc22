// Package lesson holds the stored-lesson summary and id derivation.
package lesson

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Summary describes a published lesson without loading its plan.
type Summary struct {
	ID            string    `json:"lesson_id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	Topics        int       `json:"topics"`
	Subtopics     int       `json:"subtopics"`
	MicroSections int       `json:"micro_sections"`
	Chunks        int       `json:"chunks"`
}

// Slug lowercases title, turns every character that is not a letter or a
// digit into an underscore and trims underscores from both ends.
func Slug(title string) string {
	slug := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, title)
	return strings.Trim(slug, "_")
}

// NewID derives a lesson id from title, or a random one when the title has
// no usable characters.
func NewID(title string) string {
	if s := Slug(title); s != "" {
		return s
	}
	return uuid.NewString()
}
