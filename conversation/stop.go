package conversation

import "strings"

// StopCondition decides, from the transcript-so-far, whether a run should
// stop before producing its next turn. It must be side-effect-free and fast:
// the runner evaluates it once per iteration.
type StopCondition func(*Transcript) bool

// AnyMessageContains stops once any turn's message contains substr.
func AnyMessageContains(substr string) StopCondition {
	return func(t *Transcript) bool {
		for _, turn := range t.Turns() {
			if strings.Contains(turn.Message, substr) {
				return true
			}
		}
		return false
	}
}

// LastMessageContains stops once the most recent turn's message contains
// substr. Cheaper than AnyMessageContains for long conversations.
func LastMessageContains(substr string) StopCondition {
	return func(t *Transcript) bool {
		last, ok := t.LastTurn()
		return ok && strings.Contains(last.Message, substr)
	}
}

// AnyOf combines conditions with OR semantics.
func AnyOf(conds ...StopCondition) StopCondition {
	return func(t *Transcript) bool {
		for _, cond := range conds {
			if cond != nil && cond(t) {
				return true
			}
		}
		return false
	}
}

// AllOf combines conditions with AND semantics. With no conditions it never
// stops.
func AllOf(conds ...StopCondition) StopCondition {
	return func(t *Transcript) bool {
		if len(conds) == 0 {
			return false
		}
		for _, cond := range conds {
			if cond == nil || !cond(t) {
				return false
			}
		}
		return true
	}
}
