package textgen

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request is the input for all text-generation backends.
type Request struct {
	// SystemPrompt is sent as the system message when non-empty.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// UserPrompt is the rendered user message.
	UserPrompt string `json:"user_prompt" validate:"required"`
	// Model overrides the backend's default model.
	Model string `json:"model,omitempty"`
	// Temperature controls randomness. Zero means backend default.
	Temperature float64 `json:"temperature,omitempty" validate:"gte=0,lte=2"`
	// MaxTokens limits the response length. Zero means backend default.
	MaxTokens int `json:"max_tokens,omitempty" validate:"gte=0"`
}

// Messages returns the chat messages for the request.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.SystemPrompt})
	}
	return append(msgs, Message{Role: "user", Content: r.UserPrompt})
}
