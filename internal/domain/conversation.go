package domain

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is one entry of the append-only chat log.
type ConversationMessage struct {
	ID      int64  `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is the history item sent to the backend with each question.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ProjectHistory converts a message log into backend history turns.
func ProjectHistory(messages []ConversationMessage) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
