package domain

import "time"

// Role identifies the author of a chat message.
type Role string

// Message roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message. Messages are immutable once appended
// to a transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NoAnswerPlaceholder replaces an answer the backend did not return.
const NoAnswerPlaceholder = "(No answer returned by backend)"

// QuestionRequest is the request to ask a question about the current document
type QuestionRequest struct {
	Question string `json:"question" binding:"required"`
}

// QuestionResponse is the response to an asked question
type QuestionResponse struct {
	Answer   string     `json:"answer"`
	Failed   bool       `json:"failed"`
	Messages []*Message `json:"messages"`
}

// Snapshot is a read-only copy of one session's state.
type Snapshot struct {
	SessionID string               `json:"session_id"`
	Document  *DocumentInfo        `json:"document,omitempty"`
	Status    ProcessingStatus     `json:"status"`
	Messages  []*Message           `json:"messages"`
	Config    BackendConfiguration `json:"config"`
	LastError string               `json:"last_error,omitempty"`
}
