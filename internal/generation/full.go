package generation

import (
	"context"
	"strings"

	"github.com/Manik0107/VATA/internal/llm"
	"github.com/Manik0107/VATA/internal/models"
)

// FullGeneration asks the model for the whole scene in a single call.
type FullGeneration struct {
	client llm.Client
	opts   Options
}

// NewFullGeneration creates the full-generation strategy.
func NewFullGeneration(client llm.Client, opts Options) *FullGeneration {
	return &FullGeneration{client: client, opts: opts.withDefaults()}
}

// ID implements Strategy.
func (g *FullGeneration) ID() models.StrategyID { return models.StrategyFullGeneration }

// Generate implements Strategy.
func (g *FullGeneration) Generate(ctx context.Context, sb *models.Storyboard) *models.CodeCandidate {
	reply, err := g.client.Complete(ctx, g.opts.request(generationSystemPrompt, buildFullPrompt(sb, g.opts)))
	if err != nil {
		g.opts.warnf("full generation failed: %v", err)
		return Placeholder(g.ID(), err.Error())
	}
	code := llm.ExtractCode(reply)
	if strings.TrimSpace(code) == "" {
		g.opts.warnf("full generation returned no code")
		return Placeholder(g.ID(), "empty reply")
	}
	return models.NewCandidate(code, g.ID())
}
