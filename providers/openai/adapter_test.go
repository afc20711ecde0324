package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/colloquy/llm"
	"github.com/BaSui01/colloquy/providers"
	"github.com/BaSui01/colloquy/types"
)

func TestConvertMessagesPreservesRolesAndToolFields(t *testing.T) {
	call := types.ToolCall{ID: "call_1", Name: "search", Arguments: json.RawMessage(`{"q":"go"}`)}
	msgs := convertMessages([]types.Message{
		types.NewSystemMessage("Be terse."),
		types.NewUserMessage("hi"),
		types.NewToolCallMessage("", []types.ToolCall{call}),
		types.NewToolResultMessage("call_1", "search", "results"),
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)

	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, "function", msgs[2].ToolCalls[0].Type)
	assert.Equal(t, "search", msgs[2].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"q":"go"}`, msgs[2].ToolCalls[0].Function.Arguments)

	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Equal(t, "results", msgs[3].Content)
}

func TestConvertToolChoice(t *testing.T) {
	assert.Equal(t, "auto", convertToolChoice("auto"))
	assert.Equal(t, "required", convertToolChoice("required"))
	assert.Equal(t, "none", convertToolChoice("none"))

	named, ok := convertToolChoice("search").(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "function", named["type"])
}

func TestWrapResponseFormat(t *testing.T) {
	rf := wrapResponseFormat(json.RawMessage(`{"type":"object"}`))
	require.NotNil(t, rf)
	assert.Equal(t, "json_schema", rf.Type)
	assert.JSONEq(t, `{"name":"response","schema":{"type":"object"}}`, string(rf.JSONSchema))
}

func TestMapError(t *testing.T) {
	assert.True(t, types.IsErrorCode(mapError(429, "you exceeded your current quota", "openai"), types.ErrQuotaExceeded))
	assert.False(t, types.IsRetryable(mapError(429, "you exceeded your current quota", "openai")))

	assert.True(t, types.IsErrorCode(mapError(429, "rate limit reached", "openai"), types.ErrRateLimited))
	assert.True(t, types.IsRetryable(mapError(429, "rate limit reached", "openai")))

	assert.True(t, types.IsErrorCode(mapError(401, "invalid api key", "openai"), types.ErrUnauthorized))
	assert.True(t, types.IsErrorCode(mapError(400, "bad request", "openai"), types.ErrInvalidRequest))
	assert.True(t, types.IsRetryable(mapError(503, "unavailable", "openai")))
}

func TestSendChatRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "get_weather", "arguments": "{\"city\":\"Paris\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
		}`))
	}))
	defer srv.Close()

	a := New(providers.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL}, nil)
	resp, err := a.SendChat(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("Weather in Paris?")},
		Tools:    []types.ToolSchema{{Name: "get_weather"}},
	})

	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_abc", resp.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)

	args, err := resp.ToolCalls[0].ArgumentsMap()
	require.NoError(t, err)
	assert.Equal(t, "Paris", args["city"])
	assert.Equal(t, 25, resp.Usage.TotalTokens)
}

func TestSendChatEmptyChoicesIsRetryableUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-2", "model": "gpt-4o-mini", "choices": []}`))
	}))
	defer srv.Close()

	a := New(providers.OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, MaxRetries: 0}, nil)
	_, err := a.SendChat(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})

	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	assert.True(t, types.IsRetryable(err))
}
