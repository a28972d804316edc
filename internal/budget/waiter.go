package budget

import (
	"context"
	"time"
)

// WaiterLogger receives notices while a waiter sleeps.
type WaiterLogger interface {
	LogRateLimitCountdown(remaining, total time.Duration)
}

// RateLimitWaiter decides how long to back off before retrying a transient
// model service failure.
type RateLimitWaiter struct {
	maxWait  time.Duration // longest hint we are willing to honour
	baseStep time.Duration // linear backoff step when there is no hint
	logger   WaiterLogger  // can be nil
}

// NewRateLimitWaiter creates a waiter with the given configuration.
func NewRateLimitWaiter(maxWait, baseStep time.Duration, logger WaiterLogger) *RateLimitWaiter {
	return &RateLimitWaiter{
		maxWait:  maxWait,
		baseStep: baseStep,
		logger:   logger,
	}
}

// ShouldWait returns true if info is a transient failure whose hint is short
// enough to wait for.
func (w *RateLimitWaiter) ShouldWait(info *RateLimitInfo) bool {
	if info == nil {
		return false
	}
	return info.TimeUntilReset() <= w.maxWait
}

// Delay returns the wait before retry number attempt (0-based): the
// service's hint when it gave one, otherwise (attempt+1) * baseStep.
func (w *RateLimitWaiter) Delay(info *RateLimitInfo, attempt int) time.Duration {
	if info != nil && !info.IsExpired() {
		if d := info.TimeUntilReset(); d > 0 {
			return min(d, w.maxWait)
		}
	}
	return min(time.Duration(attempt+1)*w.baseStep, w.maxWait)
}

// Wait blocks for d or until ctx is done.
func (w *RateLimitWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if w.logger != nil {
		w.logger.LogRateLimitCountdown(d, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
