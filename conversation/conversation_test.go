package conversation

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/BaSui01/colloquy/llm"
	"github.com/BaSui01/colloquy/types"
)

// scriptedAdapter replays a fixed sequence of responses and records every
// request it receives. Once the script runs out it repeats the last entry,
// which makes "the model always asks for a tool" trivial to express.
type scriptedAdapter struct {
	mu        sync.Mutex
	name      string
	responses []*types.ChatResponse
	err       error

	calls    int
	requests []*llm.ChatRequest
}

func newScriptedAdapter(name string, responses ...*types.ChatResponse) *scriptedAdapter {
	return &scriptedAdapter{name: name, responses: responses}
}

func (s *scriptedAdapter) SendChat(ctx context.Context, req *llm.ChatRequest) (*types.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 消息列表随工具循环増长，这里拷贝一份便于事后断言
	captured := *req
	captured.Messages = append([]types.Message(nil), req.Messages...)
	s.requests = append(s.requests, &captured)
	s.calls++

	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *scriptedAdapter) SupportsTools() bool { return true }

func (s *scriptedAdapter) Name() string { return s.name }

func (s *scriptedAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedAdapter) request(i int) *llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func textResponse(text string) *types.ChatResponse {
	return &types.ChatResponse{
		Message:  types.NewAssistantMessage(text),
		Provider: "scripted",
	}
}

func toolCallResponse(text string, calls ...types.ToolCall) *types.ChatResponse {
	return &types.ChatResponse{
		Message:   types.NewToolCallMessage(text, calls),
		ToolCalls: calls,
		Provider:  "scripted",
	}
}

func weatherCall(id string) types.ToolCall {
	return types.ToolCall{
		ID:        id,
		Name:      "get_weather",
		Arguments: json.RawMessage(`{"location":"Paris"}`),
	}
}

// countingExecutor records executions in order and returns a canned result.
type countingExecutor struct {
	mu    sync.Mutex
	names []string
	args  []map[string]any
	err   error
}

func (e *countingExecutor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, name)
	e.args = append(e.args, args)
	if e.err != nil {
		return nil, e.err
	}
	return "ok", nil
}

func (e *countingExecutor) executions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.names)
}

func weatherSchema() types.ToolSchema {
	return types.ToolSchema{
		Name:        "get_weather",
		Description: "Look up current weather for a location.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}},"required":["location"]}`),
	}
}
