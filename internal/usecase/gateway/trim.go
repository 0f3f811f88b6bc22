package gateway

import "github.com/kailas-cloud/lessontutor/internal/domain"

// DefaultMaxPromptChars caps the combined message content.
const DefaultMaxPromptChars = 9000

// Trim returns msgs with total content at most limit characters. The excess
// is cut from the front of the largest message; when that message is too
// short the rest is taken from the next largest, and so on. The input slice
// is not modified. A non-positive limit disables trimming.
func Trim(msgs []domain.Message, limit int) ([]domain.Message, bool) {
	if limit <= 0 {
		return msgs, false
	}

	lengths := make([]int, len(msgs))
	total := 0
	for i, m := range msgs {
		lengths[i] = m.Len()
		total += lengths[i]
	}
	if total <= limit {
		return msgs, false
	}

	out := make([]domain.Message, len(msgs))
	copy(out, msgs)

	for excess := total - limit; excess > 0; {
		largest := 0
		for i := range lengths {
			if lengths[i] > lengths[largest] {
				largest = i
			}
		}
		if lengths[largest] == 0 {
			break
		}
		cut := min(excess, lengths[largest])
		out[largest].Content = string([]rune(out[largest].Content)[cut:])
		lengths[largest] -= cut
		excess -= cut
	}
	return out, true
}
