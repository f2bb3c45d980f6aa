package domain

import "strings"

// DefaultTopK is the number of nearest neighbours retrieved when the
// caller does not ask for a specific amount.
const DefaultTopK = 6

// DedupeKeyLen is the number of leading characters of the trimmed prompt
// text used as the near-duplicate detection key. Bounded so comparison
// cost does not grow with document length.
const DedupeKeyLen = 220

// SearchHit is one ranked result from the vector store. The payload is
// an open mapping; grounded answering only relies on its "prompt" field.
type SearchHit struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Prompt returns the trimmed prompt text from the hit payload, or ""
// when the field is absent or not a string.
func (h SearchHit) Prompt() string {
	s, _ := h.Payload["prompt"].(string)
	return strings.TrimSpace(s)
}

func dedupeKey(text string) string {
	r := []rune(text)
	if len(r) > DedupeKeyLen {
		r = r[:DedupeKeyLen]
	}
	return string(r)
}

// Dedupe collapses near-duplicate hits in a single pass, preserving rank
// order among survivors. Hits with empty prompt text are dropped; hits
// whose key prefix was already seen are dropped. Helps when the same
// rows were uploaded more than once.
func Dedupe(hits []SearchHit) []SearchHit {
	seen := make(map[string]struct{}, len(hits))
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		key := dedupeKey(h.Prompt())
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

// ScrollPoint is one stored point returned by a full-collection scroll.
type ScrollPoint struct {
	ID      any            `json:"id"`
	Payload map[string]any `json:"payload"`
}

// Source identifies one context block used to ground an answer.
type Source struct {
	ID    any     `json:"id"`
	Score float64 `json:"score"`
}

// Answer is the outcome of a grounded query. Sources are ordered to
// match the numbered context blocks of the generated prompt, so index i
// in the answer text refers to Sources[i-1].
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}
