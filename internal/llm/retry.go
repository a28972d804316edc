package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/Manik0107/VATA/internal/budget"
)

// RetryOptions configures NewRetryingClient.
type RetryOptions struct {
	// RequestsPerMinute paces calls (0 = unlimited).
	RequestsPerMinute int

	// MaxRetries bounds retries of transient failures (429, 503, ...).
	MaxRetries int

	// CallTimeout bounds each individual call (0 = none).
	CallTimeout time.Duration

	// BaseBackoff is the linear backoff step; retry n waits (n+1)*BaseBackoff
	// unless the service sent a retry hint.
	BaseBackoff time.Duration

	// MaxBackoff caps any single wait.
	MaxBackoff time.Duration

	Logger budget.WaiterLogger
}

// RetryingClient paces calls with a token bucket and retries transient
// service errors.
type RetryingClient struct {
	inner       Client
	limiter     *rate.Limiter
	waiter      *budget.RateLimitWaiter
	maxRetries  int
	callTimeout time.Duration
}

// NewRetryingClient wraps inner.
func NewRetryingClient(inner Client, opts RetryOptions) *RetryingClient {
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 5 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = time.Minute
	}
	return &RetryingClient{
		inner:       inner,
		limiter:     rate.NewLimiter(limit, 1),
		waiter:      budget.NewRateLimitWaiter(opts.MaxBackoff, opts.BaseBackoff, opts.Logger),
		maxRetries:  opts.MaxRetries,
		callTimeout: opts.CallTimeout,
	}
}

// Complete implements Client.
func (c *RetryingClient) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		out, err := c.call(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err

		// Quota resets further out than MaxBackoff are not worth waiting for
		info := budget.ParseRateLimitFromError(err.Error())
		if !c.waiter.ShouldWait(info) || attempt == c.maxRetries {
			break
		}
		if err := c.waiter.Wait(ctx, c.waiter.Delay(info, attempt)); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (c *RetryingClient) call(ctx context.Context, req Request) (string, error) {
	if c.callTimeout <= 0 {
		return c.inner.Complete(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.inner.Complete(callCtx, req)
}
