// Package budget bounds how long and how often a generation strategy may be
// repaired, and parses retry hints from model service errors.
package budget

import (
	"context"
	"sync"
	"time"

	"github.com/Manik0107/VATA/internal/models"
)

// Default limits for one strategy's repair sequence.
const (
	DefaultMaxAttempts = 3
	DefaultWindow      = 5 * time.Minute
)

// Policy is the combined time and attempt ceiling for a repair sequence.
type Policy struct {
	// MaxAttempts is the maximum number of repair calls per strategy.
	MaxAttempts int
	// Window is the wall-clock budget for the whole repair sequence of
	// one strategy, including validation of repaired candidates.
	Window time.Duration
}

// DefaultPolicy returns the default 3 attempts / 5 minutes policy.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Window: DefaultWindow}
}

// Tracker accounts for one strategy's repair sequence. The clock starts
// when the tracker is created.
type Tracker struct {
	policy   Policy
	strategy models.StrategyID
	now      func() time.Time
	started  time.Time

	mu         sync.Mutex
	attempts   int
	lastPrint  string
	noProgress bool
}

// NewTracker starts a tracker for strategy under policy.
func NewTracker(strategy models.StrategyID, policy Policy) *Tracker {
	return newTrackerWithClock(strategy, policy, time.Now)
}

func newTrackerWithClock(strategy models.StrategyID, policy Policy, now func() time.Time) *Tracker {
	return &Tracker{
		policy:   policy,
		strategy: strategy,
		now:      now,
		started:  now(),
	}
}

// Deadline is when the time budget runs out.
func (t *Tracker) Deadline() time.Time {
	return t.started.Add(t.policy.Window)
}

// Context derives a context that is cancelled when the time budget runs out.
func (t *Tracker) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if t.policy.Window <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithDeadline(parent, t.Deadline())
}

// Elapsed returns the time spent since the tracker started.
func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.started)
}

// Attempts returns the number of repair calls recorded so far.
func (t *Tracker) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// RecordAttempt counts one repair call.
func (t *Tracker) RecordAttempt() {
	t.mu.Lock()
	t.attempts++
	t.mu.Unlock()
}

// Observe records the diagnostic produced by a repaired candidate. It
// returns false when the diagnostic is identical to the one produced by the
// previous repair attempt, which marks the sequence as stuck.
func (t *Tracker) Observe(d models.Diagnostic) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	fp := d.Fingerprint()
	if t.lastPrint != "" && fp == t.lastPrint {
		t.noProgress = true
		return false
	}
	t.lastPrint = fp
	return true
}

// Exhausted returns the reason the sequence must stop, or nil when another
// repair attempt is allowed. No-progress wins over time, time over attempts.
func (t *Tracker) Exhausted() *models.BudgetExhausted {
	t.mu.Lock()
	attempts := t.attempts
	stuck := t.noProgress
	t.mu.Unlock()

	var reason models.BudgetReason
	switch {
	case stuck:
		reason = models.BudgetNoProgress
	case t.policy.Window > 0 && !t.now().Before(t.Deadline()):
		reason = models.BudgetTime
	case attempts >= t.policy.MaxAttempts:
		reason = models.BudgetAttempts
	default:
		return nil
	}
	return &models.BudgetExhausted{
		Strategy: t.strategy,
		Reason:   reason,
		Attempts: attempts,
		Elapsed:  t.Elapsed(),
	}
}

// Expired builds the time-budget error for callers that observed the
// budget context ending mid-call.
func (t *Tracker) Expired() *models.BudgetExhausted {
	return &models.BudgetExhausted{
		Strategy: t.strategy,
		Reason:   models.BudgetTime,
		Attempts: t.Attempts(),
		Elapsed:  t.Elapsed(),
	}
}
