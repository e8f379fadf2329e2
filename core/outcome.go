package core

// Outcome is the terminal state of a run. A run transitions exactly once
// into one of these values.
type Outcome string

const (
	// OutcomeCompleted means the model answered without requesting tools.
	OutcomeCompleted Outcome = "completed"
	// OutcomeSubmitted means a tool emitted a final-result marker.
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeSynthesized means the turn budget ran out and a forced,
	// tool-free summary call succeeded.
	OutcomeSynthesized Outcome = "synthesized"
	// OutcomeFailed means an unrecoverable error ended the run.
	OutcomeFailed Outcome = "failed"
)

// IsTerminal reports whether o is one of the known terminal outcomes.
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomeCompleted, OutcomeSubmitted, OutcomeSynthesized, OutcomeFailed:
		return true
	}
	return false
}

// Succeeded reports whether the outcome produced a usable answer.
func (o Outcome) Succeeded() bool {
	return o.IsTerminal() && o != OutcomeFailed
}
