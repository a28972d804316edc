package models

import (
	"time"
)

// RepairAttempt records one call to the repair service.
type RepairAttempt struct {
	Input      *CodeCandidate
	Diagnostic Diagnostic
	Output     *CodeCandidate // nil when the repair call failed
	Elapsed    time.Duration
	Err        error
}

// Succeeded reports whether the repair produced a new candidate.
func (a RepairAttempt) Succeeded() bool {
	return a.Output != nil
}

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	OutcomeSucceeded         Outcome = "succeeded"
	OutcomeExhaustedFallback Outcome = "exhausted-fallback"
)

// StopReason says why a strategy stopped.
type StopReason string

const (
	StopSucceeded          StopReason = "succeeded"
	StopAttemptsExhausted  StopReason = "attempts-exhausted"
	StopTimeBudget         StopReason = "time-budget-exhausted"
	StopNoProgress         StopReason = "no-progress"
	StopRepairServiceError StopReason = "repair-service-error"
)

// StopReasonFor maps a budget reason onto the strategy stop reason.
func StopReasonFor(reason BudgetReason) StopReason {
	switch reason {
	case BudgetTime:
		return StopTimeBudget
	case BudgetNoProgress:
		return StopNoProgress
	default:
		return StopAttemptsExhausted
	}
}

// AttemptRecord is the report entry for one validated candidate. A repair
// call that produced no candidate is recorded with an empty CandidateID,
// no stage and the repair error.
type AttemptRecord struct {
	CandidateID  string      `json:"candidate_id,omitempty"`
	ParentID     string      `json:"parent_id,omitempty"`
	Attempt      int         `json:"attempt"`
	Stage        string      `json:"stage,omitempty"`
	Status       Status      `json:"status,omitempty"`
	Diagnostic   *Diagnostic `json:"diagnostic,omitempty"`
	ValidationMS int64       `json:"validation_ms"`
	RepairMS     int64       `json:"repair_ms,omitempty"`
	RepairError  string      `json:"repair_error,omitempty"`
	SourceLines  int         `json:"source_lines"`
}

// StrategyRecord is the report entry for one strategy.
type StrategyRecord struct {
	Strategy   StrategyID      `json:"strategy"`
	StartedAt  time.Time       `json:"started_at"`
	ElapsedMS  int64           `json:"elapsed_ms"`
	StopReason StopReason      `json:"stop_reason"`
	Attempts   []AttemptRecord `json:"attempts"`
}

// ProvenanceReport is the audit record of a pipeline run.
type ProvenanceReport struct {
	RunID            string           `json:"run_id"`
	Topic            string           `json:"topic"`
	Storyboard       string           `json:"storyboard,omitempty"`
	Scenes           int              `json:"scenes"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	ElapsedMS        int64            `json:"elapsed_ms"`
	Outcome          Outcome          `json:"outcome"`
	FinalStrategy    StrategyID       `json:"final_strategy"`
	FinalCandidateID string           `json:"final_candidate_id"`
	Transitions      []string         `json:"transitions"`
	Strategies       []StrategyRecord `json:"strategies"`
}

// Elapsed returns the run's wall-clock duration.
func (r *ProvenanceReport) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMS) * time.Millisecond
}

// TotalAttempts counts validated candidates across all strategies.
func (r *ProvenanceReport) TotalAttempts() int {
	n := 0
	for _, s := range r.Strategies {
		n += len(s.Attempts)
	}
	return n
}

// RepairCount counts repair calls across all strategies.
func (r *ProvenanceReport) RepairCount() int {
	n := 0
	for _, s := range r.Strategies {
		for _, a := range s.Attempts {
			if a.Attempt > 0 {
				n++
			}
		}
	}
	return n
}
