package models

import (
	"fmt"

	"github.com/google/uuid"
)

// StrategyID identifies the generation strategy that produced a candidate.
type StrategyID string

const (
	// StrategyFullGeneration asks the model for the whole scene in one call.
	StrategyFullGeneration StrategyID = "full-generation"
	// StrategyChunkedScene asks the model for one scene method at a time.
	StrategyChunkedScene StrategyID = "chunked-scene"
	// StrategyTemplateFallback renders the deterministic template.
	StrategyTemplateFallback StrategyID = "template-fallback"
	// StrategyLegacyGenerator is the rule-based generator that needs no model.
	StrategyLegacyGenerator StrategyID = "legacy-generator"
)

// Valid reports whether s is one of the known strategies.
func (s StrategyID) Valid() bool {
	switch s {
	case StrategyFullGeneration, StrategyChunkedScene, StrategyTemplateFallback, StrategyLegacyGenerator:
		return true
	default:
		return false
	}
}

// CodeCandidate is one version of generated scene source.
//
// Candidates are immutable. A repair never edits a candidate in place; it
// derives a new one whose attempt number is one higher and whose parent ID
// points back at the candidate it was repaired from. The parent link is
// lineage only: a candidate does not keep its parent alive.
type CodeCandidate struct {
	id       string
	source   string
	strategy StrategyID
	attempt  int
	parentID string
}

// NewCandidate creates a first-generation candidate (attempt 0, no parent).
func NewCandidate(source string, strategy StrategyID) *CodeCandidate {
	return &CodeCandidate{
		id:       uuid.NewString(),
		source:   source,
		strategy: strategy,
	}
}

// Derive returns a repaired successor of c carrying the new source.
func (c *CodeCandidate) Derive(source string) *CodeCandidate {
	return &CodeCandidate{
		id:       uuid.NewString(),
		source:   source,
		strategy: c.strategy,
		attempt:  c.attempt + 1,
		parentID: c.id,
	}
}

// ID returns the candidate's unique identifier.
func (c *CodeCandidate) ID() string { return c.id }

// Source returns the candidate's source text.
func (c *CodeCandidate) Source() string { return c.source }

// Strategy returns the strategy that produced the candidate lineage.
func (c *CodeCandidate) Strategy() StrategyID { return c.strategy }

// Attempt returns the repair depth: 0 for generated candidates.
func (c *CodeCandidate) Attempt() int { return c.attempt }

// ParentID returns the ID of the candidate this one was repaired from,
// or "" for a generated candidate.
func (c *CodeCandidate) ParentID() string { return c.parentID }

// String implements fmt.Stringer.
func (c *CodeCandidate) String() string {
	return fmt.Sprintf("%s#%d", c.strategy, c.attempt)
}
