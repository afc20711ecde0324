package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/llm"
	"github.com/BaSui01/colloquy/types"
)

// Analyzer feeds a rendered transcript to a participant acting as an
// evaluator or judge. It is a read-only consumer: it never appends to the
// transcript it analyzes, and it drives no tool loop — the exchange is a
// single adapter call. Whether the output parses as structured data depends
// entirely on whether the provider honored the requested response format;
// no validation or re-prompting happens here.
type Analyzer struct {
	participant *Participant
	tokenizer   types.Tokenizer
	logger      *zap.Logger
}

// NewAnalyzer creates an analyzer around the given analyst participant.
func NewAnalyzer(p *Participant, logger *zap.Logger) (*Analyzer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		participant: p,
		logger:      logger.With(zap.String("analyst", p.Name)),
	}, nil
}

// WithTokenizer enables transcript budgeting: when an AnalyzeOptions
// TokenBudget is set, the oldest turns are dropped from the rendering until
// it fits.
func (a *Analyzer) WithTokenizer(tok types.Tokenizer) *Analyzer {
	a.tokenizer = tok
	return a
}

// AnalyzeOptions parameterizes one analysis exchange.
type AnalyzeOptions struct {
	// Prompt is an analysis instruction prefixed to the rendered
	// transcript. Empty falls back to a generic "please analyze" framing.
	Prompt         string
	ResponseFormat *types.ResponseFormat
	// TokenBudget caps the rendered transcript size; zero disables
	// budgeting. Requires a tokenizer.
	TokenBudget int
}

// Analyze renders the transcript snapshot, sends it as one user message
// after the analyst's system prompts, and returns the raw response.
func (a *Analyzer) Analyze(ctx context.Context, transcript *Transcript, opts AnalyzeOptions) (*types.ChatResponse, error) {
	rendered := a.renderWithinBudget(transcript.Turns(), opts.TokenBudget)

	var userContent string
	if opts.Prompt != "" {
		userContent = fmt.Sprintf("%s\n\n--- CONVERSATION TRANSCRIPT ---\n%s", opts.Prompt, rendered)
	} else {
		userContent = fmt.Sprintf("Please analyze the following conversation:\n\n%s", rendered)
	}

	messages := a.participant.SystemMessages()
	messages = append(messages, types.NewUserMessage(userContent))

	return a.participant.Adapter.SendChat(ctx, &llm.ChatRequest{
		Config:         a.participant.RoleConfig(),
		Messages:       messages,
		ResponseFormat: opts.ResponseFormat,
	})
}

func (a *Analyzer) renderWithinBudget(turns []Turn, budget int) string {
	rendered := formatTurns(turns, 0)
	if budget <= 0 || a.tokenizer == nil {
		return rendered
	}

	dropped := 0
	for a.tokenizer.CountTokens(rendered) > budget && dropped < len(turns)-1 {
		dropped++
		rendered = fmt.Sprintf("[%d earlier turns omitted]\n\n%s", dropped, formatTurns(turns[dropped:], dropped))
	}
	if dropped > 0 {
		a.logger.Debug("transcript truncated to fit token budget",
			zap.Int("dropped_turns", dropped),
			zap.Int("budget", budget),
		)
	}
	return rendered
}

// FormatTranscript renders a transcript the way the analyzer presents it to
// the analyst model.
func FormatTranscript(t *Transcript) string {
	return formatTurns(t.Turns(), 0)
}

// formatTurns renders turns with 1-based absolute numbering; offset shifts
// the numbering when earlier turns were dropped.
func formatTurns(turns []Turn, offset int) string {
	var b strings.Builder
	for i, turn := range turns {
		fmt.Fprintf(&b, "Turn %d (%s): %s\n", offset+i+1, turn.Role, turn.Message)

		if len(turn.ToolInvocations) > 0 {
			b.WriteString("  Tool Calls:\n")
			for _, inv := range turn.ToolInvocations {
				fmt.Fprintf(&b, "    - %s: %s\n", inv.ToolName, renderArguments(inv.Arguments))
				if inv.Result != nil {
					fmt.Fprintf(&b, "      Result: %v\n", inv.Result)
				}
				if inv.Error != "" {
					fmt.Fprintf(&b, "      Error: %s\n", inv.Error)
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(payload)
}
