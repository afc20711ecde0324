package conversation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/tools"
	"github.com/BaSui01/colloquy/types"
)

const defaultMaxToolSteps = 6

// RunnerConfig carries the run-independent pieces of a conversation:
// the tool surface shared by every participant, the executor that resolves
// it, and the ambient logger and metrics.
type RunnerConfig struct {
	Tools    []types.ToolSchema
	Executor tools.Executor
	Logger   *zap.Logger
	Metrics  *Metrics
}

// Runner schedules turns across two or more participants in fixed
// round-robin order. It is the transcript's only writer.
type Runner struct {
	participants []*Participant
	runners      map[string]*TurnRunner
	logger       *zap.Logger
	metrics      *Metrics
}

// NewRunner validates the participant set and builds one turn runner per
// participant. Fewer than two participants, duplicate names, or tools
// without an executor are configuration errors reported here, before any
// turn can execute.
func NewRunner(participants []*Participant, cfg RunnerConfig) (*Runner, error) {
	if len(participants) < 2 {
		return nil, types.NewConfigurationError(fmt.Sprintf(
			"conversation requires at least 2 participants, got %d", len(participants),
		))
	}
	if len(cfg.Tools) > 0 && cfg.Executor == nil {
		return nil, types.NewConfigurationError("tool executor is required when tools are provided")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runners := make(map[string]*TurnRunner, len(participants))
	for _, p := range participants {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := runners[p.Name]; dup {
			return nil, types.NewConfigurationError(fmt.Sprintf("duplicate participant name: %s", p.Name))
		}
		tr, err := NewTurnRunner(p, cfg.Tools, cfg.Executor, logger)
		if err != nil {
			return nil, err
		}
		runners[p.Name] = tr.WithMetrics(cfg.Metrics)
	}

	return &Runner{
		participants: participants,
		runners:      runners,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// RunOptions parameterizes a single run.
type RunOptions struct {
	// StartingMessage is what the first acting participant responds to.
	StartingMessage string
	// StartingParticipant names who acts first; empty selects the first
	// configured participant. An unknown name is fatal before any turn.
	StartingParticipant string
	// MaxTurns caps the run; zero or negative means no cap, so a stop
	// condition becomes the only way the run ends normally.
	MaxTurns int
	// StopCondition is evaluated against the transcript at the start of
	// each iteration, before the turn is produced. It can therefore never
	// suppress the turn currently being computed, only the next one.
	StopCondition StopCondition
	// InitialTranscript continues an existing conversation instead of
	// starting empty.
	InitialTranscript *Transcript
	// MaxToolSteps bounds each turn's tool loop; zero or negative uses the
	// default of 6.
	MaxToolSteps   int
	ToolChoice     string
	ResponseFormat *types.ResponseFormat
}

// Run drives the conversation until the turn cap or the stop condition
// fires. On error the transcript up to the last completed turn is returned
// alongside it, valid for reuse as InitialTranscript in a continued run.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Transcript, error) {
	transcript := opts.InitialTranscript
	if transcript == nil {
		transcript = NewTranscript()
	}

	idx := 0
	if opts.StartingParticipant != "" {
		idx = -1
		for i, p := range r.participants {
			if p.Name == opts.StartingParticipant {
				idx = i
				break
			}
		}
		if idx < 0 {
			return transcript, types.NewConfigurationError(fmt.Sprintf(
				"starting participant %q is not part of this conversation", opts.StartingParticipant,
			))
		}
	}

	maxToolSteps := opts.MaxToolSteps
	if maxToolSteps <= 0 {
		maxToolSteps = defaultMaxToolSteps
	}
	toolChoice := opts.ToolChoice
	if toolChoice == "" {
		toolChoice = "auto"
	}

	currentMessage := opts.StartingMessage
	turnCount := 0

	for {
		// 上限与停止条件都在产生回合之前检查
		if opts.MaxTurns > 0 && turnCount >= opts.MaxTurns {
			break
		}
		if opts.StopCondition != nil && opts.StopCondition(transcript) {
			break
		}

		participant := r.participants[idx]
		history := buildHistory(transcript)

		start := time.Now()
		resp, err := r.runners[participant.Name].Run(ctx, history, currentMessage, TurnOptions{
			MaxToolSteps:   maxToolSteps,
			ToolChoice:     toolChoice,
			ResponseFormat: opts.ResponseFormat,
		})
		if err != nil {
			r.logger.Error("turn failed",
				zap.String("participant", participant.Name),
				zap.Int("turn", transcript.Len()),
				zap.Error(err),
			)
			return transcript, err
		}

		text := resp.Text()
		var invocations []ToolInvocationRecord
		for _, call := range resp.ToolCalls {
			args, argErr := call.ArgumentsMap()
			if argErr != nil {
				args = nil
			}
			invocations = append(invocations, ToolInvocationRecord{
				ToolName:  call.Name,
				Arguments: args,
			})
		}

		transcript.AddTurn(Turn{
			Role:            participant.Name,
			Message:         text,
			ToolInvocations: invocations,
		})
		r.metrics.observeTurn(participant.Name, time.Since(start))
		r.logger.Debug("turn completed",
			zap.String("participant", participant.Name),
			zap.Int("turn", transcript.Len()-1),
			zap.Int("tool_invocations", len(invocations)),
		)

		// 刚产生的文本成为下一位参与者要回应的消息
		currentMessage = text
		idx = (idx + 1) % len(r.participants)
		turnCount++
	}

	return transcript, nil
}

// buildHistory replays prior turns as positionally alternating user and
// assistant messages, starting with user, regardless of which named
// participant produced each turn. This positional view is what allows a
// participant to be swapped mid-conversation without changing the shape of
// history the others see.
func buildHistory(t *Transcript) []types.Message {
	turns := t.Turns()
	out := make([]types.Message, 0, len(turns))
	for i, turn := range turns {
		if i%2 == 0 {
			out = append(out, types.NewUserMessage(turn.Message))
		} else {
			out = append(out, types.NewAssistantMessage(turn.Message))
		}
	}
	return out
}
