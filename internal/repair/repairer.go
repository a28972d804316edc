// Package repair turns a failing candidate and its diagnostic into a
// derived candidate by calling an external patching service.
package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Manik0107/VATA/internal/llm"
	"github.com/Manik0107/VATA/internal/models"
)

// Service revises source given the diagnostic it failed with. It is an
// opaque external call: possibly slow, possibly failing.
type Service interface {
	Repair(ctx context.Context, source string, diag models.Diagnostic) (string, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, source string, diag models.Diagnostic) (string, error)

// Repair implements Service.
func (f ServiceFunc) Repair(ctx context.Context, source string, diag models.Diagnostic) (string, error) {
	return f(ctx, source, diag)
}

// LLMService repairs code with a model using the healing prompt.
type LLMService struct {
	client      llm.Client
	temperature float32
}

// NewLLMService creates a model-backed repair service.
func NewLLMService(client llm.Client) *LLMService {
	return &LLMService{client: client, temperature: 0.1}
}

// Repair implements Service.
func (s *LLMService) Repair(ctx context.Context, source string, diag models.Diagnostic) (string, error) {
	reply, err := s.client.Complete(ctx, llm.Request{
		System:      HealingSystemPrompt,
		Prompt:      BuildHealingPrompt(source, diag),
		Temperature: s.temperature,
	})
	if err != nil {
		return "", err
	}
	return llm.ExtractCode(reply), nil
}

// Logger receives repair debug output.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// Repairer runs one repair call under the caller's budget context.
// It holds no per-run state and is safe for concurrent use.
type Repairer struct {
	service Service
	logger  Logger
}

// NewRepairer creates a Repairer around service. logger may be nil.
func NewRepairer(service Service, logger Logger) *Repairer {
	return &Repairer{service: service, logger: logger}
}

type repairResult struct {
	source string
	err    error
}

// Repair asks the service to fix c given its failing verdict.
//
// The service call runs in its own goroutine. If ctx ends first the call is
// abandoned and any late result is discarded: a deadline yields
// *models.BudgetExhausted, a cancellation yields ctx.Err(). A service error
// or an empty reply yields *models.RepairServiceError. On success the new
// candidate is derived from c (attempt+1, parent set).
func (r *Repairer) Repair(ctx context.Context, c *models.CodeCandidate, verdict models.ValidationVerdict) (*models.CodeCandidate, models.RepairAttempt, error) {
	attempt := models.RepairAttempt{Input: c}
	if verdict.Passed() || verdict.Diagnostic == nil {
		return nil, attempt, fmt.Errorf("repair requested for a passing candidate %s", c)
	}
	attempt.Diagnostic = *verdict.Diagnostic

	start := time.Now()
	done := make(chan repairResult, 1)
	go func() {
		src, err := r.service.Repair(ctx, c.Source(), *verdict.Diagnostic)
		done <- repairResult{source: src, err: err}
	}()

	var res repairResult
	select {
	case <-ctx.Done():
		attempt.Elapsed = time.Since(start)
		attempt.Err = ctx.Err()
		r.debugf("repair of %s abandoned after %s: %v", c, attempt.Elapsed.Round(time.Millisecond), ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			be := &models.BudgetExhausted{
				Strategy: c.Strategy(),
				Reason:   models.BudgetTime,
				Attempts: c.Attempt() + 1,
				Elapsed:  attempt.Elapsed,
			}
			attempt.Err = be
			return nil, attempt, be
		}
		return nil, attempt, ctx.Err()
	case res = <-done:
	}
	attempt.Elapsed = time.Since(start)

	if res.err != nil {
		rse := &models.RepairServiceError{Message: "repair call failed", Err: res.err}
		attempt.Err = rse
		return nil, attempt, rse
	}
	if strings.TrimSpace(res.source) == "" {
		rse := &models.RepairServiceError{Message: "empty or malformed response"}
		attempt.Err = rse
		return nil, attempt, rse
	}

	next := c.Derive(res.source)
	attempt.Output = next
	r.debugf("repair of %s produced %s in %s", c, next, attempt.Elapsed.Round(time.Millisecond))
	return next, attempt, nil
}

func (r *Repairer) debugf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debugf(format, args...)
	}
}
