// Package openai 实现 OpenAI Chat Completions API 的 llm.Adapter。
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/llm"
	"github.com/BaSui01/colloquy/providers"
	"github.com/BaSui01/colloquy/types"
)

const defaultModel = "gpt-4o-mini"

// Adapter 实现 OpenAI 的消息适配。
// OpenAI 是统一契约最接近的格式：角色、tool_calls、tool 消息一一对应。
type Adapter struct {
	cfg     providers.OpenAIConfig
	client  *http.Client
	retryer *providers.Retryer
	limiter *providers.Limiter
	logger  *zap.Logger
}

// New 创建 OpenAI Adapter。API Key 缺省时从 OPENAI_API_KEY（含 .env）读取。
func New(cfg providers.OpenAIConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.APIKey = providers.ResolveAPIKey(cfg.APIKey, "OPENAI_API_KEY")

	return &Adapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		retryer: providers.NewRetryer(providers.DefaultRetryPolicy(cfg.MaxRetries), logger),
		limiter: providers.NewLimiter(cfg.RateLimitRPS),
		logger:  logger.With(zap.String("provider", "openai")),
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) SupportsTools() bool { return true }

type openaiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Arguments   string          `json:"arguments,omitempty"`
}

type openaiToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"` // function
	Function openaiFunction `json:"function"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiTool struct {
	Type     string         `json:"type"` // function
	Function openaiFunction `json:"function"`
}

type openaiResponseFormat struct {
	Type       string          `json:"type"` // json_schema
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    float32               `json:"temperature,omitempty"`
	TopP           float32               `json:"top_p,omitempty"`
	Seed           *int64                `json:"seed,omitempty"`
	Tools          []openaiTool          `json:"tools,omitempty"`
	ToolChoice     any                   `json:"tool_choice,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	FinishReason string        `json:"finish_reason"`
	Message      openaiMessage `json:"message"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openaiChoice `json:"choices"`
	Usage   *openaiUsage   `json:"usage,omitempty"`
}

type openaiErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// SendChat 发送一次同步聊天请求。
func (a *Adapter) SendChat(ctx context.Context, req *llm.ChatRequest) (*types.ChatResponse, error) {
	body := openaiRequest{
		Model:       providers.ChooseModel(req, a.cfg.Model, defaultModel),
		Messages:    convertMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Config.Temperature,
		TopP:        req.Config.TopP,
		Seed:        req.Config.Seed,
		Tools:       convertTools(req.Tools),
	}
	if len(req.Tools) > 0 && req.ToolChoice != "" {
		body.ToolChoice = convertToolChoice(req.ToolChoice)
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Kind == types.ResponseFormatJSONSchema {
		body.ResponseFormat = wrapResponseFormat(req.ResponseFormat.Schema)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "marshal openai request").
			WithCause(err).WithProvider(a.Name())
	}

	return a.retryer.Do(ctx, func() (*types.ChatResponse, error) {
		return a.post(ctx, payload)
	})
}

func (a *Adapter) post(ctx context.Context, payload []byte) (*types.ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/chat/completions", strings.TrimRight(a.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(a.Name())
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.Organization != "" {
		httpReq.Header.Set("OpenAI-Organization", a.cfg.Organization)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}

	if resp.StatusCode >= 400 {
		return nil, mapError(resp.StatusCode, readErrMsg(raw), a.Name())
	}

	var or openaiResponse
	if err := json.Unmarshal(raw, &or); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}
	if len(or.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "openai response has no choices").
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}
	return toChatResponse(or, raw, a.Name()), nil
}

func convertMessages(msgs []types.Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openaiMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openaiToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openaiFunction{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func convertTools(tools []types.ToolSchema) []openaiTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openaiTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func convertToolChoice(choice string) any {
	switch choice {
	case "auto", "required", "none":
		return choice
	default:
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": choice},
		}
	}
}

// wrapResponseFormat 按 OpenAI 的 json_schema 包装要求补上 name 字段。
func wrapResponseFormat(schema json.RawMessage) *openaiResponseFormat {
	wrapper, err := json.Marshal(map[string]any{
		"name":   "response",
		"schema": json.RawMessage(schema),
	})
	if err != nil {
		return nil
	}
	return &openaiResponseFormat{Type: "json_schema", JSONSchema: wrapper}
}

func toChatResponse(or openaiResponse, raw []byte, provider string) *types.ChatResponse {
	choice := or.Choices[0]

	msg := types.Message{
		Role:    types.RoleAssistant,
		Content: choice.Message.Content,
	}
	var calls []types.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	msg.ToolCalls = calls

	resp := &types.ChatResponse{
		Message:   msg,
		ToolCalls: calls,
		Provider:  provider,
		Model:     or.Model,
		Raw:       json.RawMessage(raw),
	}
	if or.Usage != nil {
		resp.Usage = types.TokenUsage{
			PromptTokens:     or.Usage.PromptTokens,
			CompletionTokens: or.Usage.CompletionTokens,
			TotalTokens:      or.Usage.TotalTokens,
		}
	}
	return resp
}

func readErrMsg(raw []byte) string {
	var er openaiErrorResp
	if err := json.Unmarshal(raw, &er); err == nil && er.Error.Message != "" {
		return fmt.Sprintf("%s (type: %s)", er.Error.Message, er.Error.Type)
	}
	return string(raw)
}

func mapError(status int, msg string, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusTooManyRequests:
		// 限流与配额用尽共用 429
		if strings.Contains(msg, "quota") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithHTTPStatus(status).WithProvider(provider)
		}
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusBadRequest:
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status).WithProvider(provider)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(provider)
	}
}
