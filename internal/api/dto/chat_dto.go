package dto

import "github.com/spec-kit/servicedesk/internal/domain"

// ChatMessageRequest carries one user message.
type ChatMessageRequest struct {
	Text string `json:"text"`
}

// ChatPromptRequest asks for a prompt to be run in a user's session.
// Identity defaults to the caller.
type ChatPromptRequest struct {
	Identity string `json:"identity"`
	Prompt   string `json:"prompt"`
}

// ChatSendResponse reports how a message was classified.
type ChatSendResponse struct {
	Intent    string `json:"intent"`
	Sensitive bool   `json:"sensitive"`
}

// ChatConversationResponse is the current session state.
type ChatConversationResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
	Thinking bool                 `json:"thinking"`
}
