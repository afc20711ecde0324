// Package anthropic 实现 Anthropic Messages API 的 llm.Adapter。
package anthropic

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

const defaultModel = "claude-3-5-sonnet-20241022"

// Adapter 实现 Anthropic Claude 的消息适配。
// 与 OpenAI 的主要差异：
// 1. 认证使用 x-api-key 请求头而非 Bearer Token
// 2. system 消息单独传递（system 字段）
// 3. content 是块数组：text / tool_use / tool_result
// 4. 工具结果包装成 user 消息而非 tool 角色
type Adapter struct {
	cfg     providers.AnthropicConfig
	client  *http.Client
	retryer *providers.Retryer
	limiter *providers.Limiter
	logger  *zap.Logger
}

// New 创建 Anthropic Adapter。API Key 缺省时从 ANTHROPIC_API_KEY（含 .env）读取。
func New(cfg providers.AnthropicConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second // Claude 响应可能较慢
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	cfg.APIKey = providers.ResolveAPIKey(cfg.APIKey, "ANTHROPIC_API_KEY")

	return &Adapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		retryer: providers.NewRetryer(providers.DefaultRetryPolicy(cfg.MaxRetries), logger),
		limiter: providers.NewLimiter(cfg.RateLimitRPS),
		logger:  logger.With(zap.String("provider", "anthropic")),
	}
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) SupportsTools() bool { return true }

// Anthropic 消息结构
type anthropicMessage struct {
	Role    string             `json:"role"` // user 或 assistant
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string          `json:"type"` // text, tool_use, tool_result
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"` // for tool_result
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"` // auto, any, tool
	Name string `json:"name,omitempty"`
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	Messages    []anthropicMessage   `json:"messages"`
	System      string               `json:"system,omitempty"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float32              `json:"temperature,omitempty"`
	TopP        float32              `json:"top_p,omitempty"`
	Tools       []anthropicTool      `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      *anthropicUsage    `json:"usage,omitempty"`
}

type anthropicErrorResp struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendChat 发送一次同步消息请求。
// response_format 为建议性参数，Anthropic 不支持原生结构化输出，这里静默忽略。
func (a *Adapter) SendChat(ctx context.Context, req *llm.ChatRequest) (*types.ChatResponse, error) {
	if req.ResponseFormat != nil && req.ResponseFormat.Kind == types.ResponseFormatJSONSchema {
		a.logger.Debug("anthropic ignores response_format, relying on prompt instructions")
	}

	system, messages := convertMessages(req.Messages)

	body := anthropicRequest{
		Model:       providers.ChooseModel(req, a.cfg.Model, defaultModel),
		Messages:    messages,
		System:      system,
		MaxTokens:   chooseMaxTokens(req),
		Temperature: req.Config.Temperature,
		TopP:        req.Config.TopP,
		Tools:       convertTools(req.Tools),
	}
	if len(req.Tools) > 0 && req.ToolChoice != "" {
		body.ToolChoice = convertToolChoice(req.ToolChoice)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "marshal anthropic request").
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

	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(a.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(a.Name())
	}
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

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

	var ar anthropicResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}
	return toChatResponse(ar, raw, a.Name()), nil
}

// convertMessages 将统一格式转换为 Anthropic 格式。
// system 消息提取到单独字段；tool 结果包装成 user 消息的 tool_result 块。
func convertMessages(msgs []types.Message) (string, []anthropicMessage) {
	var systemParts []string
	var out []anthropicMessage

	for _, m := range msgs {
		switch {
		case m.Role == types.RoleSystem:
			systemParts = append(systemParts, m.Content)

		case m.Role == types.RoleTool:
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})

		default:
			am := anthropicMessage{Role: string(m.Role)}
			if m.Content != "" {
				am.Content = append(am.Content, anthropicContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				am.Content = append(am.Content, anthropicContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			if len(am.Content) > 0 {
				out = append(out, am)
			}
		}
	}

	return strings.Join(systemParts, "\n\n"), out
}

func convertTools(tools []types.ToolSchema) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object"}`)
		}
		out = append(out, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: params,
		})
	}
	return out
}

func convertToolChoice(choice string) *anthropicToolChoice {
	switch choice {
	case "auto":
		return &anthropicToolChoice{Type: "auto"}
	case "required":
		return &anthropicToolChoice{Type: "any"}
	case "none":
		return nil
	default:
		return &anthropicToolChoice{Type: "tool", Name: choice}
	}
}

func toChatResponse(ar anthropicResponse, raw []byte, provider string) *types.ChatResponse {
	msg := types.Message{Role: types.RoleAssistant}
	var calls []types.ToolCall

	for _, c := range ar.Content {
		switch c.Type {
		case "text":
			msg.Content += c.Text
		case "tool_use":
			calls = append(calls, types.ToolCall{
				ID:        c.ID,
				Name:      c.Name,
				Arguments: c.Input,
			})
		}
	}
	msg.ToolCalls = calls

	resp := &types.ChatResponse{
		Message:   msg,
		ToolCalls: calls,
		Provider:  provider,
		Model:     ar.Model,
		Raw:       json.RawMessage(raw),
	}
	if ar.Usage != nil {
		resp.Usage = types.TokenUsage{
			PromptTokens:     ar.Usage.InputTokens,
			CompletionTokens: ar.Usage.OutputTokens,
			TotalTokens:      ar.Usage.InputTokens + ar.Usage.OutputTokens,
		}
	}
	return resp
}

func readErrMsg(raw []byte) string {
	var er anthropicErrorResp
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
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusBadRequest:
		// 参数错误与配额不足共用 400
		if strings.Contains(msg, "credit") || strings.Contains(msg, "quota") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithHTTPStatus(status).WithProvider(provider)
		}
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status).WithProvider(provider)
	case 529: // Anthropic 特有的过载状态码
		return types.NewError(types.ErrModelOverloaded, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(provider)
	}
}

func chooseMaxTokens(req *llm.ChatRequest) int {
	if req != nil && req.MaxTokens > 0 {
		return req.MaxTokens
	}
	// Anthropic 要求必须提供 max_tokens
	return 4096
}
