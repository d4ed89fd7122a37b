package entity

// Role tags a generation message with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in a generation request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationRequest is the chat-completions payload sent to the
// generation service.
type GenerationRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// GenerationResponse mirrors the chat-completions response shape; only the
// first choice's message content is consumed.
type GenerationResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
