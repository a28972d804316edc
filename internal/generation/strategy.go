// Package generation turns a storyboard into candidate scene source.
//
// Strategies never return an error. When a strategy cannot produce code,
// for example because the model call failed, it returns a placeholder
// candidate whose source is a single comment; that candidate fails the
// syntax stage and the selector treats it like any other failing candidate.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/Manik0107/VATA/internal/llm"
	"github.com/Manik0107/VATA/internal/models"
)

// Strategy produces one candidate from a storyboard.
type Strategy interface {
	ID() models.StrategyID
	Generate(ctx context.Context, sb *models.Storyboard) *models.CodeCandidate
}

// Logger receives warnings about failed generation calls.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Options shapes the generated scene and the model requests.
type Options struct {
	// BaseClass is the scene base class (default "Scene").
	BaseClass string
	// EntryMethod is the scene entry point (default "construct").
	EntryMethod string

	Temperature float32
	MaxTokens   int

	Logger Logger
}

func (o Options) withDefaults() Options {
	if o.BaseClass == "" {
		o.BaseClass = "Scene"
	}
	if o.EntryMethod == "" {
		o.EntryMethod = "construct"
	}
	return o
}

func (o Options) warnf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Warnf(format, args...)
	}
}

func (o Options) request(system, prompt string) llm.Request {
	return llm.Request{
		System:      system,
		Prompt:      prompt,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
}

// Placeholder is the candidate a strategy returns when it has nothing to
// offer. Its source holds only a comment.
func Placeholder(id models.StrategyID, reason string) *models.CodeCandidate {
	reason = strings.Join(strings.Fields(reason), " ")
	return models.NewCandidate(fmt.Sprintf("# %s produced no code: %s\n", id, reason), id)
}

// Ordered returns the validated strategies in priority order: full
// generation, chunked scenes, then the rule-based generator. The template
// fallback is not part of the list; the selector uses it directly.
func Ordered(client llm.Client, opts Options) []Strategy {
	return []Strategy{
		NewFullGeneration(client, opts),
		NewChunkedScene(client, opts),
		NewLegacyGenerator(opts),
	}
}
