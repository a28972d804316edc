package generation

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/Manik0107/VATA/internal/llm"
	"github.com/Manik0107/VATA/internal/models"
)

var (
	defLine = regexp.MustCompile(`^def\s+\w+\s*\(`)

	errNoMethod = errors.New("reply contained no method definition")
)

// ChunkedScene asks the model for one method per storyboard scene and
// assembles the methods into a single scene class. A scene whose call fails
// is rendered as a title card instead.
type ChunkedScene struct {
	client llm.Client
	opts   Options
}

// NewChunkedScene creates the chunked-scene strategy.
func NewChunkedScene(client llm.Client, opts Options) *ChunkedScene {
	return &ChunkedScene{client: client, opts: opts.withDefaults()}
}

// ID implements Strategy.
func (g *ChunkedScene) ID() models.StrategyID { return models.StrategyChunkedScene }

// Generate implements Strategy.
func (g *ChunkedScene) Generate(ctx context.Context, sb *models.Storyboard) *models.CodeCandidate {
	names := MethodNames(sb.Scenes)
	methods := make([]method, len(sb.Scenes))
	generated := 0
	var lastErr error

	for i, scene := range sb.Scenes {
		if ctx.Err() != nil {
			return Placeholder(g.ID(), ctx.Err().Error())
		}
		code, err := g.chunk(ctx, sb, scene, names[i])
		if err != nil {
			g.opts.warnf("scene %d (%s): %v; using a title card", scene.Index, scene.Title, err)
			lastErr = err
			methods[i] = method{Name: names[i], Code: renderTitleCard(names[i], scene)}
			continue
		}
		generated++
		methods[i] = method{Name: names[i], Code: code}
	}

	if generated == 0 {
		if lastErr == nil {
			return Placeholder(g.ID(), models.ErrNoScenes.Error())
		}
		return Placeholder(g.ID(), "every scene call failed: "+lastErr.Error())
	}
	return models.NewCandidate(renderScene(sb, g.opts, methods), g.ID())
}

func (g *ChunkedScene) chunk(ctx context.Context, sb *models.Storyboard, scene models.StoryboardScene, name string) (string, error) {
	reply, err := g.client.Complete(ctx, g.opts.request(generationSystemPrompt, buildScenePrompt(sb, scene, name)))
	if err != nil {
		return "", err
	}
	code, ok := methodBlock(llm.ExtractCode(reply), name)
	if !ok {
		return "", errNoMethod
	}
	return code, nil
}

// methodBlock finds the first def in code, renames it to name and
// re-indents it for a class body. Top-level lines before the def, such as
// imports, are dropped. The block ends at the first top-level line that
// does not start another def or decorator.
func methodBlock(code, name string) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(code, "\t", "    "), "\n")

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "def ") {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	indent := len(lines[start]) - len(strings.TrimLeft(lines[start], " "))
	var out []string
	for i, line := range lines[start:] {
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		lead := len(line) - len(strings.TrimLeft(line, " "))
		if lead < indent {
			break
		}
		line = line[indent:]
		if i > 0 && lead == indent && !strings.HasPrefix(line, "def ") && !strings.HasPrefix(line, "@") {
			break
		}
		if i == 0 {
			line = defLine.ReplaceAllString(line, "def "+name+"(")
		}
		out = append(out, "    "+line)
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n"), true
}
