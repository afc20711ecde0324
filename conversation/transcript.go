package conversation

import (
	"sync"

	"github.com/google/uuid"
)

// ToolInvocationRecord is the historical fact that a tool was invoked during
// a turn: which tool and with what arguments. Results are not persisted at
// the transcript layer; they live only inside the turn's message exchange.
type ToolInvocationRecord struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Turn is one participant's complete contribution to a conversation, after
// all tool resolution for that turn has finished. Role is the participant's
// name, not a chat role.
type Turn struct {
	Role            string                 `json:"role"`
	Message         string                 `json:"message"`
	ToolInvocations []ToolInvocationRecord `json:"tool_invocations,omitempty"`
}

// Transcript is the ordered, append-only record of a conversation. It is the
// sole owner of conversation history: the runner appends, everything else
// reads. The only mutation it exposes is AddTurn — turns can never be edited
// or removed once appended.
//
// A mutex guards the turn list so a live reader (progress display, analyzer
// on a snapshot) can observe a monotonically growing sequence while a run is
// in flight.
type Transcript struct {
	id string

	mu    sync.RWMutex
	turns []Turn
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{id: uuid.NewString()}
}

// ID returns the transcript's unique identifier.
func (t *Transcript) ID() string { return t.id }

// AddTurn appends a turn.
func (t *Transcript) AddTurn(turn Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
}

// Turns returns a snapshot copy of all turns in order.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// LastTurn returns the most recent turn, if any.
func (t *Transcript) LastTurn() (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}
