package chat

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is an OpenAI-compatible chat message. The agent transcript is an
// append-only slice of these, owned by the loop for its bounded lifetime.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System returns a system-role message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user-role message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant returns an assistant-role message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
