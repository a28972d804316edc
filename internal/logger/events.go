package logger

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/Manik0107/VATA/internal/models"
)

// entry is one rendered log line. accent, when set, colours the whole
// message on colour-capable consoles.
type entry struct {
	level  string
	msg    string
	accent *color.Color
}

var (
	accentHeader  = color.New(color.Bold)
	accentSuccess = color.New(color.FgGreen)
	accentFailure = color.New(color.FgRed)
	accentWarn    = color.New(color.FgYellow)
)

func candidateLabel(c *models.CodeCandidate) string {
	if c == nil {
		return "<none>"
	}
	return c.String()
}

// Format: "Trying strategy 1: full-generation"
func strategyStartEntries(index int, strategy models.StrategyID) []entry {
	return []entry{{level: "info", msg: fmt.Sprintf("Trying strategy %d: %s", index+1, strategy), accent: accentHeader}}
}

func verdictEntries(c *models.CodeCandidate, v models.ValidationVerdict) []entry {
	if v.Passed() {
		return []entry{{
			level:  "info",
			msg:    fmt.Sprintf("Candidate %s passed all stages (%s)", candidateLabel(c), formatDuration(v.Duration)),
			accent: accentSuccess,
		}}
	}
	diag := "no diagnostic"
	if v.Diagnostic != nil {
		diag = v.Diagnostic.String()
	}
	out := []entry{{
		level: "warn",
		msg:   fmt.Sprintf("Candidate %s failed %s stage: %s", candidateLabel(c), v.StageReached, diag),
	}}
	if v.Diagnostic != nil {
		for _, viol := range v.Diagnostic.Violations {
			out = append(out, entry{level: "debug", msg: fmt.Sprintf("  - [%s] line %d: %s", viol.RuleID, viol.Line, viol.Message)})
		}
	}
	return out
}

func repairEntries(ra models.RepairAttempt) []entry {
	if ra.Err != nil {
		return []entry{{
			level: "warn",
			msg:   fmt.Sprintf("Repair of %s failed after %s: %v", candidateLabel(ra.Input), formatDuration(ra.Elapsed), ra.Err),
		}}
	}
	return []entry{{
		level: "info",
		msg:   fmt.Sprintf("Repaired %s -> %s (%s)", candidateLabel(ra.Input), candidateLabel(ra.Output), formatDuration(ra.Elapsed)),
	}}
}

func transitionEntries(from, to string) []entry {
	return []entry{{level: "debug", msg: fmt.Sprintf("Transition %s -> %s", from, to)}}
}

func outcomeEntries(report *models.ProvenanceReport) []entry {
	if report == nil {
		return nil
	}
	outcome := accentSuccess
	if report.Outcome != models.OutcomeSucceeded {
		outcome = accentWarn
	}
	out := []entry{
		{level: "info", msg: "=== Run Summary ===", accent: accentHeader},
		{level: "info", msg: fmt.Sprintf("Run:        %s", report.RunID)},
		{level: "info", msg: fmt.Sprintf("Topic:      %s", report.Topic)},
		{level: "info", msg: fmt.Sprintf("Outcome:    %s", report.Outcome), accent: outcome},
		{level: "info", msg: fmt.Sprintf("Strategy:   %s", report.FinalStrategy)},
		{level: "info", msg: fmt.Sprintf("Candidates: %d validated, %d repairs", report.TotalAttempts(), report.RepairCount())},
		{level: "info", msg: fmt.Sprintf("Duration:   %s", formatDuration(report.Elapsed()))},
	}
	for _, s := range report.Strategies {
		accent := accentFailure
		if s.StopReason == models.StopSucceeded {
			accent = accentSuccess
		}
		out = append(out, entry{
			level:  "debug",
			msg:    fmt.Sprintf("  - %s: %s after %d candidates", s.Strategy, s.StopReason, len(s.Attempts)),
			accent: accent,
		})
	}
	return out
}

func rateLimitEntries(remaining, total time.Duration) []entry {
	return []entry{{
		level:  "warn",
		msg:    fmt.Sprintf("Rate limited: retrying in %s (wait %s)", formatDuration(remaining), formatDuration(total)),
		accent: accentWarn,
	}}
}
