package models

import "time"

// Exchange is one answered request held by the chat backend. The backend replays stored exchanges to the
// language model as conversation context for the next question.
type Exchange struct {
	ID        string
	Message   string
	Reply     string
	Timestamp time.Time
}

// Role represents the role of a participant as the language model providers understand it.
type Role string

const (
	// RoleSystem carries the assistant instructions.
	RoleSystem Role = "system"
	// RoleUser represents a user turn.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant turn.
	RoleAssistant Role = "assistant"
)

// Turn is a provider-neutral chat message.
type Turn struct {
	Role    Role
	Content string
}

// Turns flattens the system prompt, the previous exchanges and the new message into the alternating
// sequence the providers expect. An empty system prompt is omitted.
func Turns(systemPrompt string, history []Exchange, message string) []Turn {
	turns := make([]Turn, 0, len(history)*2+2)
	if systemPrompt != "" {
		turns = append(turns, Turn{Role: RoleSystem, Content: systemPrompt})
	}
	for _, ex := range history {
		turns = append(turns,
			Turn{Role: RoleUser, Content: ex.Message},
			Turn{Role: RoleAssistant, Content: ex.Reply},
		)
	}
	return append(turns, Turn{Role: RoleUser, Content: message})
}
