package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/llm"
	"github.com/BaSui01/colloquy/tools"
	"github.com/BaSui01/colloquy/types"
)

// TurnRunner executes one participant's turn against a given history,
// driving the tool-resolution loop until the model stops requesting tools or
// the step limit is hit. It never touches the transcript: recording is the
// conversation runner's job, which keeps turn failures free of partial
// transcript mutation.
type TurnRunner struct {
	participant *Participant
	tools       []types.ToolSchema
	executor    tools.Executor
	logger      *zap.Logger
	metrics     *Metrics
}

// NewTurnRunner creates a turn runner for one participant. Supplying tools
// without an executor is a configuration error caught here, not at run time.
func NewTurnRunner(p *Participant, schemas []types.ToolSchema, executor tools.Executor, logger *zap.Logger) (*TurnRunner, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(schemas) > 0 && executor == nil {
		return nil, types.NewConfigurationError("tool executor is required when tools are provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnRunner{
		participant: p,
		tools:       schemas,
		executor:    executor,
		logger:      logger.With(zap.String("participant", p.Name)),
	}, nil
}

// WithMetrics attaches a metrics collector. A nil collector disables
// instrumentation.
func (r *TurnRunner) WithMetrics(m *Metrics) *TurnRunner {
	r.metrics = m
	return r
}

// TurnOptions controls one turn execution.
type TurnOptions struct {
	// MaxToolSteps bounds tool-loop iterations. Zero means the first
	// response is returned as-is, even if it still requests tools.
	MaxToolSteps   int
	ToolChoice     string
	ResponseFormat *types.ResponseFormat
}

// Run executes a single turn: system prompts, then history, then the new
// user message, then the tool loop. When at least one tool call was executed,
// the returned response's ToolCalls holds the aggregate of every executed
// call across the loop while Message stays the model's final message.
//
// Adapter and executor errors propagate unmodified and abort the turn.
func (r *TurnRunner) Run(ctx context.Context, history []types.Message, userMessage string, opts TurnOptions) (*types.ChatResponse, error) {
	messages := r.participant.SystemMessages()
	messages = append(messages, history...)
	messages = append(messages, types.NewUserMessage(userMessage))

	resp, err := r.callAdapter(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	var executed []types.ToolCall
	steps := 0
	for len(resp.ToolCalls) > 0 && steps < opts.MaxToolSteps {
		// 同一批次的所有 call_id 先整体校验，任何一个缺失都在执行之前失败
		for _, call := range resp.ToolCalls {
			if call.ID == "" {
				return nil, types.NewContractViolationError(fmt.Sprintf(
					"tool call %q is missing required call_id; adapter %q must set call IDs",
					call.Name, r.participant.Adapter.Name(),
				))
			}
		}
		executed = append(executed, resp.ToolCalls...)

		messages = append(messages, types.NewToolCallMessage(resp.Text(), resp.ToolCalls))

		// 顺序执行，不并发：即使模型一次返回多个"并行"调用
		for _, call := range resp.ToolCalls {
			args, err := call.ArgumentsMap()
			if err != nil {
				return nil, types.NewContractViolationError(fmt.Sprintf(
					"tool call %q carries non-object arguments", call.Name,
				)).WithCause(err)
			}

			result, err := r.executor.Execute(ctx, call.Name, args)
			if err != nil {
				return nil, err
			}
			r.metrics.observeToolExecution(call.Name)

			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(fmt.Sprintf("%v", result))
			}
			messages = append(messages, types.NewToolResultMessage(call.ID, call.Name, string(payload)))
		}

		resp, err = r.callAdapter(ctx, messages, opts)
		if err != nil {
			return nil, err
		}
		steps++
	}

	if len(executed) > 0 {
		return &types.ChatResponse{
			Message:   resp.Message,
			ToolCalls: executed,
			Usage:     resp.Usage,
			Provider:  resp.Provider,
			Model:     resp.Model,
			Raw:       resp.Raw,
		}, nil
	}
	return resp, nil
}

func (r *TurnRunner) callAdapter(ctx context.Context, messages []types.Message, opts TurnOptions) (*types.ChatResponse, error) {
	req := &llm.ChatRequest{
		Config:         r.participant.RoleConfig(),
		Messages:       messages,
		ResponseFormat: opts.ResponseFormat,
	}
	if len(r.tools) > 0 {
		req.Tools = r.tools
		req.ToolChoice = opts.ToolChoice
	}

	resp, err := r.participant.Adapter.SendChat(ctx, req)
	r.metrics.observeAdapterCall(r.participant.Adapter.Name(), err)
	if err != nil {
		return nil, err
	}
	r.metrics.observeTokens(resp.Provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}
