// Package llm provides the model clients used to generate and repair
// animation code.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Manik0107/VATA/internal/budget"
	"github.com/Manik0107/VATA/internal/config"
)

// ErrEmptyResponse is returned when the model replied with no content.
var ErrEmptyResponse = errors.New("empty response from model")

// ErrNoBackend is returned by the none backend.
var ErrNoBackend = errors.New("no model backend configured")

// Request holds one completion call.
type Request struct {
	// System is the system instruction (optional).
	System string

	// Prompt is the user prompt (required).
	Prompt string

	// Temperature and MaxTokens override the client defaults when non-zero.
	Temperature float32
	MaxTokens   int
}

// Client completes a prompt. Implementations must honour ctx cancellation.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

type noneClient struct{}

func (noneClient) Complete(context.Context, Request) (string, error) {
	return "", ErrNoBackend
}

// New builds the client for cfg.Backend, wrapped with pacing and retries.
func New(cfg config.LLMConfig, logger budget.WaiterLogger) (Client, error) {
	var inner Client
	switch cfg.Backend {
	case "gemini", "openai":
		c, err := NewOpenAIClient(cfg)
		if err != nil {
			return nil, err
		}
		inner = c
	case "claude-cli":
		inner = NewClaudeClient(cfg)
	case "none", "":
		return noneClient{}, nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}

	return NewRetryingClient(inner, RetryOptions{
		RequestsPerMinute: cfg.RequestsPerMinute,
		MaxRetries:        cfg.MaxRetries,
		CallTimeout:       cfg.Timeout,
		BaseBackoff:       5 * time.Second,
		MaxBackoff:        time.Minute,
		Logger:            logger,
	}), nil
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
