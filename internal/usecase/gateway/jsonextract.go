package gateway

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSONRegex = regexp.MustCompile("(?is)```json(.*?)```")

// ExtractJSON pulls a JSON value out of free-form model output. It tries a
// fenced ```json block, then the span from the first '{' or '[' to the last
// '}' or ']', then the whole trimmed text. ok is false when none parses.
func ExtractJSON(raw string) (value any, ok bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}

	if m := fencedJSONRegex.FindStringSubmatch(text); m != nil {
		if v, ok := parseJSON(m[1]); ok {
			return v, true
		}
	}

	if start, end := jsonSpan(text); start >= 0 && end > start {
		if v, ok := parseJSON(text[start:end]); ok {
			return v, true
		}
	}

	return parseJSON(text)
}

func jsonSpan(text string) (start, end int) {
	start = -1
	for _, i := range []int{strings.IndexByte(text, '{'), strings.IndexByte(text, '[')} {
		if i != -1 && (start == -1 || i < start) {
			start = i
		}
	}
	end = max(strings.LastIndexByte(text, '}'), strings.LastIndexByte(text, ']'))
	if end == -1 {
		return -1, -1
	}
	return start, end + 1
}

func parseJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// StringList returns the string elements of a decoded JSON array, trimmed and
// without empties, capped at maxItems. Non-array values yield nil.
func StringList(value any, maxItems int) []string {
	arr, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		out = append(out, s)
		if maxItems > 0 && len(out) == maxItems {
			break
		}
	}
	return out
}
