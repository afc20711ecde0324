// Package gemini 实现 Google Gemini generateContent API 的 llm.Adapter。
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/llm"
	"github.com/BaSui01/colloquy/providers"
	"github.com/BaSui01/colloquy/types"
)

const defaultModel = "gemini-1.5-flash"

// Adapter 实现 Google Gemini 的消息适配。
// Gemini API 特点：
// 1. 使用 x-goog-api-key 请求头认证
// 2. 角色只有 user / model，system 走 systemInstruction
// 3. 工具调用是 functionCall / functionResponse part，且不携带调用 ID —
//    适配器在此合成 ID，以满足统一契约对非空 call_id 的要求
type Adapter struct {
	cfg     providers.GeminiConfig
	client  *http.Client
	retryer *providers.Retryer
	limiter *providers.Limiter
	logger  *zap.Logger
}

// New 创建 Gemini Adapter。API Key 缺省时从 GOOGLE_API_KEY（含 .env）读取。
func New(cfg providers.GeminiConfig, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	cfg.APIKey = providers.ResolveAPIKey(cfg.APIKey, "GOOGLE_API_KEY")

	return &Adapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		retryer: providers.NewRetryer(providers.DefaultRetryPolicy(cfg.MaxRetries), logger),
		limiter: providers.NewLimiter(cfg.RateLimitRPS),
		logger:  logger.With(zap.String("provider", "gemini")),
	}
}

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) SupportsTools() bool { return true }

// Gemini 消息结构
type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float32         `json:"temperature,omitempty"`
	TopP             float32         `json:"topP,omitempty"`
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
	ModelVersion  string            `json:"modelVersion,omitempty"`
}

type geminiErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// SendChat 发送一次同步 generateContent 请求。
func (a *Adapter) SendChat(ctx context.Context, req *llm.ChatRequest) (*types.ChatResponse, error) {
	system, contents := convertMessages(req.Messages)

	genCfg := &geminiGenerationConfig{
		Temperature:     req.Config.Temperature,
		TopP:            req.Config.TopP,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Kind == types.ResponseFormatJSONSchema {
		genCfg.ResponseMimeType = "application/json"
		genCfg.ResponseSchema = req.ResponseFormat.Schema
	}

	body := geminiRequest{
		Contents:         contents,
		GenerationConfig: genCfg,
		Tools:            convertTools(req.Tools),
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "marshal gemini request").
			WithCause(err).WithProvider(a.Name())
	}

	model := providers.ChooseModel(req, a.cfg.Model, defaultModel)
	return a.retryer.Do(ctx, func() (*types.ChatResponse, error) {
		return a.post(ctx, model, payload)
	})
}

func (a *Adapter) post(ctx context.Context, model string, payload []byte) (*types.ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(a.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(a.Name())
	}
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

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

	var gr geminiResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}
	if len(gr.Candidates) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "gemini response has no candidates").
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithProvider(a.Name())
	}
	return toChatResponse(gr, raw, a.Name(), model), nil
}

// convertMessages 将统一格式转换为 Gemini contents。
// system 消息合并进 systemInstruction；tool 结果转换成 functionResponse part。
func convertMessages(msgs []types.Message) (string, []geminiContent) {
	var systemParts []string
	var out []geminiContent

	for _, m := range msgs {
		switch {
		case m.Role == types.RoleSystem:
			systemParts = append(systemParts, m.Content)

		case m.Role == types.RoleTool:
			out = append(out, geminiContent{
				Role: "user",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResponse{
						Name:     m.Name,
						Response: map[string]any{"content": m.Content},
					},
				}},
			})

		default:
			role := "user"
			if m.Role == types.RoleAssistant {
				role = "model"
			}
			gc := geminiContent{Role: role}
			if m.Content != "" {
				gc.Parts = append(gc.Parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				gc.Parts = append(gc.Parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: tc.Arguments},
				})
			}
			if len(gc.Parts) > 0 {
				out = append(out, gc)
			}
		}
	}

	return strings.Join(systemParts, "\n\n"), out
}

func convertTools(tools []types.ToolSchema) []geminiTool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]geminiFunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, geminiFunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return []geminiTool{{FunctionDeclarations: decls}}
}

func toChatResponse(gr geminiResponse, raw []byte, provider, model string) *types.ChatResponse {
	candidate := gr.Candidates[0]

	msg := types.Message{Role: types.RoleAssistant}
	var calls []types.ToolCall

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			msg.Content += part.Text
		}
		if part.FunctionCall != nil {
			// Gemini 不返回调用 ID，这里合成一个以满足统一契约
			calls = append(calls, types.ToolCall{
				ID:        "call_" + uuid.NewString(),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	msg.ToolCalls = calls

	if gr.ModelVersion != "" {
		model = gr.ModelVersion
	}
	resp := &types.ChatResponse{
		Message:   msg,
		ToolCalls: calls,
		Provider:  provider,
		Model:     model,
		Raw:       json.RawMessage(raw),
	}
	if gr.UsageMetadata != nil {
		resp.Usage = types.TokenUsage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		}
	}
	return resp
}

func readErrMsg(raw []byte) string {
	var er geminiErrorResp
	if err := json.Unmarshal(raw, &er); err == nil && er.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", er.Error.Message, er.Error.Status)
	}
	return string(raw)
}

func mapError(status int, msg string, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusBadRequest:
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status).WithProvider(provider)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(provider)
	}
}
