package models

// Role values for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a conversation session.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// GroundedAnswer is the structured output contract the generator must satisfy.
// All four fields are mandatory; a response that cannot be decoded into this
// shape is a generation failure, not a best-effort answer.
type GroundedAnswer struct {
	ThinkingProcess string   `json:"thinking_process"`
	Answer          string   `json:"answer"`
	CitationIDs     []string `json:"citation_ids"`
	IsRefusal       bool     `json:"is_refusal"`
}

// Citation is a verified source reference surfaced to the caller. Only ids
// present in the actually-retrieved candidate set survive reconciliation.
type Citation struct {
	SourceID string `json:"source_id"`
	Quote    string `json:"quote"`
	Page     int    `json:"page,omitempty"`
	FileName string `json:"file_name"`
}

// ChatResponse is the body of the POST /chat response. Every terminal path of
// the chat flow produces one of these, including refusals and system errors.
type ChatResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	ToolUsed  string     `json:"tool_used"`
	IsRefusal bool       `json:"is_refusal"`
	SessionID string     `json:"session_id"`
}

// ToolRAG is the tool identifier reported on chat responses.
const ToolRAG = "retrieval_augmented_generation"
