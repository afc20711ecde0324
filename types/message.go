package types

import "encoding/json"

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a tool invocation requested by the model.
// ID is the opaque, provider-issued call identifier; an empty ID means the
// provider did not supply one, which the turn runner treats as a contract
// violation before any execution happens.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ArgumentsMap decodes the call arguments into a generic map.
// Empty or absent arguments decode to an empty map.
func (tc ToolCall) ArgumentsMap() (map[string]any, error) {
	if len(tc.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(tc.Arguments, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Message represents a normalized conversation message.
//
// Exactly one content shape applies:
//   - plain text:             Content set, ToolCalls and ToolCallID empty
//   - assistant tool request: ToolCalls set (Content may carry leading text)
//   - tool result:            Role == RoleTool, ToolCallID and Content set
//
// Messages are values; they are built fresh per adapter call and never
// mutated after construction.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// NewMessage creates a new message with the given role and text content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// NewToolCallMessage creates an assistant message describing requested calls.
func NewToolCallMessage(text string, calls []ToolCall) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   text,
		ToolCalls: calls,
	}
}

// NewToolResultMessage creates a tool-role message carrying one call's result.
func NewToolResultMessage(toolCallID, name, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		Name:       name,
		ToolCallID: toolCallID,
	}
}

// IsToolResult reports whether the message carries a tool execution result.
func (m Message) IsToolResult() bool {
	return m.Role == RoleTool && m.ToolCallID != ""
}

// HasToolCalls reports whether the message requests tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
