package domain

// MaxHistoryTurns caps how much conversation history reaches the
// generation prompt. Older turns are silently dropped.
const MaxHistoryTurns = 6

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one prior message of a free-chat conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrimHistory returns the last MaxHistoryTurns entries of history.
// The returned slice aliases the input.
func TrimHistory(history []ChatTurn) []ChatTurn {
	if len(history) > MaxHistoryTurns {
		return history[len(history)-MaxHistoryTurns:]
	}
	return history
}
