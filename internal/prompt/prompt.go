// Package prompt assembles the text sent to the generation model.
// Everything here is pure string construction: deterministic, no I/O.
package prompt

import (
	"fmt"
	"strings"

	"github.com/warehouse-ai/ragcore/internal/domain"
)

// Fallback is the literal sentence the model is instructed to emit when
// the supplied context cannot answer the question. Enforced only via
// instruction; the model may still disobey (soft constraint).
const Fallback = "Not found in provided data."

// Chat builds the free-chat prompt: a fixed preamble, up to the last
// six non-empty history turns, the new user message, and a trailing
// "Assistant:" cue for the model to continue.
func Chat(message string, history []domain.ChatTurn) string {
	parts := []string{
		"You are a helpful assistant running privately on-prem.",
		"Answer clearly and concisely.",
		"",
		"Conversation:",
	}

	for _, turn := range domain.TrimHistory(history) {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		prefix := "Assistant: "
		if turn.Role == domain.RoleUser {
			prefix = "User: "
		}
		parts = append(parts, prefix+content)
	}

	parts = append(parts, "User: "+strings.TrimSpace(message), "Assistant:")
	return strings.Join(parts, "\n")
}

// ContextBlocks renders deduplicated hits as numbered context blocks
// and returns the matching sources. Block [i] corresponds to the i-th
// source, so indices cited in the answer line up with the source list.
func ContextBlocks(hits []domain.SearchHit) ([]string, []domain.Source) {
	blocks := make([]string, 0, len(hits))
	sources := make([]domain.Source, 0, len(hits))
	for _, h := range hits {
		txt := h.Prompt()
		if txt == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s", len(blocks)+1, txt))
		sources = append(sources, domain.Source{ID: h.ID, Score: h.Score})
	}
	return blocks, sources
}

// Grounded builds the RAG prompt: an instruction block constraining the
// model to the supplied context, the numbered context blocks, the
// question, and an "Answer:" cue. Returns the sources in block order.
func Grounded(question string, hits []domain.SearchHit) (string, []domain.Source) {
	blocks, sources := ContextBlocks(hits)

	var b strings.Builder
	b.WriteString("You answer ONLY from CONTEXT.\n")
	b.WriteString("If the answer is not in CONTEXT, say: ")
	b.WriteString(Fallback)
	b.WriteString("\n\nCONTEXT:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer:")
	return b.String(), sources
}

// MathGrounded builds the prompt for aggregation questions. The exact
// numeric result is computed locally and passed in as authoritative;
// the model is told to use context only for explanation and examples.
func MathGrounded(numericResult, question string, hits []domain.SearchHit) (string, []domain.Source) {
	blocks, sources := ContextBlocks(hits)

	var b strings.Builder
	b.WriteString("NUMERIC_RESULT (authoritative):\n")
	b.WriteString(numericResult)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- DO NOT recompute numbers (sum/avg/min/max/count) from CONTEXT.\n")
	b.WriteString("- Use CONTEXT only for explanation and a few examples.\n")
	b.WriteString("\nCONTEXT:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer:")
	return b.String(), sources
}
