package pipeline

import (
	"fmt"

	"github.com/Manik0107/VATA/internal/models"
)

// StateKind enumerates the selector states.
type StateKind int

const (
	// StateTrying generates and validates a candidate with strategy i.
	StateTrying StateKind = iota
	// StateRepairing repairs the current candidate of strategy i.
	StateRepairing
	// StateSucceeded holds a candidate that passed every stage.
	StateSucceeded
	// StateExhaustedFallback holds the template candidate.
	StateExhaustedFallback
)

// State is one node of the selector state machine.
type State struct {
	Kind      StateKind
	Strategy  int
	Attempt   int
	Candidate *models.CodeCandidate
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s.Kind == StateSucceeded || s.Kind == StateExhaustedFallback
}

func (s State) String() string {
	switch s.Kind {
	case StateTrying:
		return fmt.Sprintf("Trying(%d)", s.Strategy)
	case StateRepairing:
		return fmt.Sprintf("Repairing(%d,%d)", s.Strategy, s.Attempt)
	case StateSucceeded:
		return fmt.Sprintf("Succeeded(%s)", s.Candidate)
	case StateExhaustedFallback:
		return fmt.Sprintf("ExhaustedFallback(%s)", s.Candidate)
	default:
		return "Unknown"
	}
}

func trying(i int) State {
	return State{Kind: StateTrying, Strategy: i}
}

func repairing(i, attempt int) State {
	return State{Kind: StateRepairing, Strategy: i, Attempt: attempt}
}

func succeeded(i int, c *models.CodeCandidate) State {
	return State{Kind: StateSucceeded, Strategy: i, Candidate: c}
}

func exhausted(i int, c *models.CodeCandidate) State {
	return State{Kind: StateExhaustedFallback, Strategy: i, Candidate: c}
}
