package types

import "encoding/json"

// ResponseFormatKind enumerates the requested response shapes.
type ResponseFormatKind string

const (
	ResponseFormatDefault    ResponseFormatKind = "default"
	ResponseFormatJSONSchema ResponseFormatKind = "json_schema"
)

// ResponseFormat is an advisory request for structured output. Not every
// provider honors it; adapters may ignore it silently.
type ResponseFormat struct {
	Kind   ResponseFormatKind `json:"kind"`
	Schema json.RawMessage    `json:"schema,omitempty"`
}

// NewJSONSchemaFormat builds a json_schema response format.
func NewJSONSchemaFormat(schema json.RawMessage) *ResponseFormat {
	return &ResponseFormat{Kind: ResponseFormatJSONSchema, Schema: schema}
}

// ChatResponse is the normalized result of one adapter call. It is produced
// once and never mutated after construction.
//
// ToolCalls mirrors Message.ToolCalls on a fresh response; after a turn
// runner drives a tool loop it holds the aggregate of every call executed
// across the loop while Message keeps the model's last message.
type ChatResponse struct {
	Message   Message         `json:"message"`
	ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
	Usage     TokenUsage      `json:"usage,omitempty"`
	Provider  string          `json:"provider,omitempty"`
	Model     string          `json:"model,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"` // opaque provider payload kept for diagnostics
}

// Text returns the final textual message of the response.
func (r *ChatResponse) Text() string {
	return r.Message.Content
}

// HasToolCalls reports whether the response requests tool invocations.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}
