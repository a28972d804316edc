package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Stage is one of the four ordered validation checks.
type Stage int

const (
	// StageSyntax parses the source without executing it.
	StageSyntax Stage = iota
	// StageLogic scans the parse tree against the rule table.
	StageLogic
	// StageRuntime executes the source in a sandboxed subprocess.
	StageRuntime
	// StageInstantiation loads the module and constructs the scene class.
	StageInstantiation
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageSyntax, StageLogic, StageRuntime, StageInstantiation}

// String returns the string representation of Stage.
func (s Stage) String() string {
	switch s {
	case StageSyntax:
		return "syntax"
	case StageLogic:
		return "logic"
	case StageRuntime:
		return "runtime"
	case StageInstantiation:
		return "scene-instantiation"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	for _, st := range Stages {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(text))
}

// Status is the outcome of a validation run.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// DiagnosticKind classifies a diagnostic.
type DiagnosticKind string

const (
	KindSyntax        DiagnosticKind = "syntax-error"
	KindLogic         DiagnosticKind = "logic-error"
	KindRuntime       DiagnosticKind = "runtime-error"
	KindTimeout       DiagnosticKind = "timeout"
	KindInstantiation DiagnosticKind = "instantiation-error"
)

// RuleViolation is a single logic-rule hit.
type RuleViolation struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Diagnostic is the structured error attached to a failing verdict.
// Line is 1-indexed; 0 means unknown.
type Diagnostic struct {
	Kind       DiagnosticKind  `json:"kind"`
	Message    string          `json:"message"`
	Line       int             `json:"line,omitempty"`
	Violations []RuleViolation `json:"violations,omitempty"`
}

// RuleIDs returns the distinct rule IDs in the diagnostic, sorted.
func (d Diagnostic) RuleIDs() []string {
	seen := make(map[string]bool, len(d.Violations))
	var ids []string
	for _, v := range d.Violations {
		if !seen[v.RuleID] {
			seen[v.RuleID] = true
			ids = append(ids, v.RuleID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Fingerprint identifies a diagnostic for no-progress detection. Two
// diagnostics share a fingerprint when they have the same kind, line,
// violations and whitespace-normalized message.
func (d Diagnostic) Fingerprint() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	fmt.Fprintf(&b, "|%d|", d.Line)
	b.WriteString(strings.Join(strings.Fields(d.Message), " "))
	for _, v := range d.Violations {
		fmt.Fprintf(&b, "|%s@%d", v.RuleID, v.Line)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// String renders the diagnostic on one line with the line number when known.
func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", d.Kind, d.Line, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// ValidationVerdict is the result of one validation run. StageReached is the
// stage that failed, or the last stage when every stage passed.
type ValidationVerdict struct {
	StageReached Stage         `json:"stage_reached"`
	Status       Status        `json:"status"`
	Diagnostic   *Diagnostic   `json:"diagnostic,omitempty"`
	Duration     time.Duration `json:"-"`
}

// Passed reports whether every stage passed.
func (v ValidationVerdict) Passed() bool {
	return v.Status == StatusPass
}

// PassVerdict is the all-stages-passed verdict.
func PassVerdict(d time.Duration) ValidationVerdict {
	return ValidationVerdict{StageReached: StageInstantiation, Status: StatusPass, Duration: d}
}

// FailVerdict builds a failing verdict at stage with the given diagnostic.
func FailVerdict(stage Stage, diag Diagnostic, d time.Duration) ValidationVerdict {
	return ValidationVerdict{StageReached: stage, Status: StatusFail, Diagnostic: &diag, Duration: d}
}
