package conversation

import (
	"fmt"

	"github.com/BaSui01/colloquy/llm"
	"github.com/BaSui01/colloquy/types"
)

// Participant binds an adapter, a model identifier, sampling parameters and a
// fixed set of system prompts into one named conversational actor. The
// adapter is shared, not owned: the same instance may back several
// participants. A Participant is never mutated during a run.
type Participant struct {
	Name          string
	Adapter       llm.Adapter
	Model         string
	Temperature   float32
	TopP          float32
	Seed          *int64
	SystemPrompts []string
}

// NewParticipant creates a participant with top_p defaulted to 1.0.
func NewParticipant(name string, adapter llm.Adapter, model string, systemPrompts ...string) *Participant {
	return &Participant{
		Name:          name,
		Adapter:       adapter,
		Model:         model,
		TopP:          1.0,
		SystemPrompts: systemPrompts,
	}
}

// Validate reports construction errors eagerly, before any turn executes.
func (p *Participant) Validate() error {
	if p == nil {
		return types.NewConfigurationError("participant is nil")
	}
	if p.Name == "" {
		return types.NewConfigurationError("participant name must not be empty")
	}
	if p.Adapter == nil {
		return types.NewConfigurationError(fmt.Sprintf("participant %s has no adapter", p.Name))
	}
	return nil
}

// SystemMessages materializes the system prompts as system-role messages.
// Recomputed on every access: prompts are immutable, so recomputation is
// cheap and can never go stale.
func (p *Participant) SystemMessages() []types.Message {
	out := make([]types.Message, 0, len(p.SystemPrompts))
	for _, prompt := range p.SystemPrompts {
		out = append(out, types.NewSystemMessage(prompt))
	}
	return out
}

// RoleConfig projects the participant's sampling settings into the shape the
// adapter call consumes.
func (p *Participant) RoleConfig() llm.RoleConfig {
	return llm.RoleConfig{
		Provider:    p.Adapter.Name(),
		Model:       p.Model,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		Seed:        p.Seed,
	}
}
