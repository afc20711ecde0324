// Package llm defines the provider adapter boundary: the single capability
// interface every vendor integration implements, and the normalized request
// it consumes. Concrete adapters live under providers/.
package llm

import (
	"context"

	"github.com/BaSui01/colloquy/types"
)

// RoleConfig is a participant's model projection: everything an adapter
// needs to know about who is asking, without knowing about participants.
type RoleConfig struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	Seed        *int64  `json:"seed,omitempty"`
}

// ChatRequest carries one normalized chat exchange. Messages is a finite,
// ordered sequence ending logically in the newest user turn. If Tools is
// empty, the response must not contain tool calls.
type ChatRequest struct {
	Config         RoleConfig            `json:"config"`
	Messages       []types.Message       `json:"messages"`
	Tools          []types.ToolSchema    `json:"tools,omitempty"`
	ToolChoice     string                `json:"tool_choice,omitempty"` // auto/required/none or a tool name
	ResponseFormat *types.ResponseFormat `json:"response_format,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
}

// Adapter is the capability boundary between the orchestration core and one
// vendor's API. Implementations own their wire format, authentication,
// model-name fallback, and any retry/backoff or rate-limiting policy; the
// core performs zero retries of its own.
//
// Contract: when SupportsTools returns true, every ToolCall in a returned
// response carries a non-empty ID. The turn runner checks this once and the
// rest of the core relies on it.
//
// Adapters signal unrecoverable provider failure by returning an error,
// normally a *types.Error carrying the mapped code.
type Adapter interface {
	// SendChat executes one chat exchange and returns the normalized response.
	SendChat(ctx context.Context, req *ChatRequest) (*types.ChatResponse, error)

	// SupportsTools reports whether the provider natively supports tool calling.
	SupportsTools() bool

	// Name returns the adapter's provider identifier.
	Name() string
}
