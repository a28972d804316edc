package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Diagnoser is implemented by candidate-level errors that can describe
// themselves as a Diagnostic.
type Diagnoser interface {
	error
	Stage() Stage
	Diagnostic() Diagnostic
}

// SyntaxError reports a parse failure.
type SyntaxError struct {
	Message string
	Line    int
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Message)
	}
	return "syntax error: " + e.Message
}

// Stage implements Diagnoser.
func (e *SyntaxError) Stage() Stage { return StageSyntax }

// Diagnostic implements Diagnoser.
func (e *SyntaxError) Diagnostic() Diagnostic {
	return Diagnostic{Kind: KindSyntax, Message: e.Message, Line: e.Line}
}

// LogicError aggregates every rule the candidate violated.
type LogicError struct {
	Violations []RuleViolation
}

func (e *LogicError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d logic rule violation(s)", len(e.Violations)))
	for _, v := range e.Violations {
		if v.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  - [%s] line %d: %s", v.RuleID, v.Line, v.Message))
		} else {
			sb.WriteString(fmt.Sprintf("\n  - [%s] %s", v.RuleID, v.Message))
		}
	}
	return sb.String()
}

// Stage implements Diagnoser.
func (e *LogicError) Stage() Stage { return StageLogic }

// Diagnostic implements Diagnoser. Line is the first violation's line.
func (e *LogicError) Diagnostic() Diagnostic {
	d := Diagnostic{Kind: KindLogic, Violations: append([]RuleViolation(nil), e.Violations...)}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("[%s] %s", v.RuleID, v.Message))
	}
	d.Message = strings.Join(msgs, "; ")
	if len(e.Violations) > 0 {
		d.Line = e.Violations[0].Line
	}
	return d
}

// RuntimeError reports a non-zero exit or timeout of the executed candidate.
type RuntimeError struct {
	Message  string
	Line     int
	ExitCode int
	TimedOut bool
	Timeout  time.Duration
}

func (e *RuntimeError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("runtime timeout after %v", e.Timeout)
	}
	return fmt.Sprintf("runtime error (exit %d): %s", e.ExitCode, e.Message)
}

// Unwrap returns context.DeadlineExceeded for timeouts so errors.Is works.
func (e *RuntimeError) Unwrap() error {
	if e.TimedOut {
		return context.DeadlineExceeded
	}
	return nil
}

// Stage implements Diagnoser.
func (e *RuntimeError) Stage() Stage { return StageRuntime }

// Diagnostic implements Diagnoser.
func (e *RuntimeError) Diagnostic() Diagnostic {
	if e.TimedOut {
		msg := fmt.Sprintf("execution exceeded %v and was killed", e.Timeout)
		if e.Message != "" {
			msg += ": " + e.Message
		}
		return Diagnostic{Kind: KindTimeout, Message: msg, Line: e.Line}
	}
	return Diagnostic{Kind: KindRuntime, Message: e.Message, Line: e.Line}
}

// InstantiationError reports a missing scene class, a missing entry method,
// or a constructor failure.
type InstantiationError struct {
	ClassName string
	Message   string
}

func (e *InstantiationError) Error() string {
	if e.ClassName != "" {
		return fmt.Sprintf("instantiation of %s failed: %s", e.ClassName, e.Message)
	}
	return "instantiation failed: " + e.Message
}

// Stage implements Diagnoser.
func (e *InstantiationError) Stage() Stage { return StageInstantiation }

// Diagnostic implements Diagnoser.
func (e *InstantiationError) Diagnostic() Diagnostic {
	return Diagnostic{Kind: KindInstantiation, Message: e.Message}
}

// RepairServiceError reports that the external repair call was unreachable
// or returned something unusable.
type RepairServiceError struct {
	Message string
	Err     error
}

func (e *RepairServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("repair service: %s: %v", e.Message, e.Err)
	}
	return "repair service: " + e.Message
}

func (e *RepairServiceError) Unwrap() error { return e.Err }

// BudgetReason says which limit stopped a repair sequence.
type BudgetReason string

const (
	BudgetTime       BudgetReason = "time"
	BudgetAttempts   BudgetReason = "attempts"
	BudgetNoProgress BudgetReason = "no-progress"
)

// BudgetExhausted reports that a strategy's repair budget ran out.
type BudgetExhausted struct {
	Strategy StrategyID
	Reason   BudgetReason
	Attempts int
	Elapsed  time.Duration
}

func (e *BudgetExhausted) Error() string {
	return fmt.Sprintf("repair budget exhausted for %s (%s) after %d attempt(s) in %s",
		e.Strategy, e.Reason, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// EnvironmentFault means the pipeline cannot execute at all, for example
// because the sandbox or the interpreter is unavailable. It is the only
// error the selector propagates.
type EnvironmentFault struct {
	Op  string
	Err error
}

// NewEnvironmentFault wraps err as an EnvironmentFault for op.
func NewEnvironmentFault(op string, err error) *EnvironmentFault {
	return &EnvironmentFault{Op: op, Err: err}
}

func (e *EnvironmentFault) Error() string {
	return fmt.Sprintf("environment fault: %s: %v", e.Op, e.Err)
}

func (e *EnvironmentFault) Unwrap() error { return e.Err }

// IsEnvironmentFault reports whether err is or wraps an EnvironmentFault.
func IsEnvironmentFault(err error) bool {
	var fault *EnvironmentFault
	return errors.As(err, &fault)
}

// IsBudgetExhausted reports whether err is or wraps a BudgetExhausted.
func IsBudgetExhausted(err error) bool {
	var be *BudgetExhausted
	return errors.As(err, &be)
}

// IsRepairServiceError reports whether err is or wraps a RepairServiceError.
func IsRepairServiceError(err error) bool {
	var rse *RepairServiceError
	return errors.As(err, &rse)
}

// AsDiagnoser extracts a candidate-level error from err.
func AsDiagnoser(err error) (Diagnoser, bool) {
	var d Diagnoser
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
