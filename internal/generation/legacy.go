package generation

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Manik0107/VATA/internal/models"
)

// Topic types the rule-based generator recognises.
const (
	topicRegression  = "regression"
	topicMathematics = "mathematics"
	topicStatistics  = "statistics"
	topicGeneral     = "general"
)

var topicKeywords = map[string][]string{
	topicRegression:  {"regression", "linear regression", "predict", "correlation", "best fit"},
	topicMathematics: {"equation", "formula", "theorem", "proof", "derivative", "integral"},
	topicStatistics:  {"probability", "distribution", "mean", "variance", "standard deviation"},
}

type primitive int

const (
	primScatter primitive = iota
	primGraph
	primEquation
	primCircle
	primArrow
	primBullets
	primText
)

// Checked in priority order; a scene shows at most maxPrimitives of them.
var primitiveCues = []struct {
	prim     primitive
	keywords []string
}{
	{primScatter, []string{"regression", "scatter", "data point", "best fit", "correlation"}},
	{primGraph, []string{"graph", "plot", "axes", "axis", "function", "curve", "chart"}},
	{primEquation, []string{"equation", "formula", "derivative", "integral"}},
	{primCircle, []string{"circle", "cycle", "orbit", "round"}},
	{primArrow, []string{"arrow", "vector", "direction", "flow", "force"}},
	{primBullets, []string{"list", "bullet", "steps", "key points", "summary", "conclusion", "recap"}},
}

const maxPrimitives = 2

var (
	assignment = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_]*\s*=\s*[^,;\n]+`)
	sentence   = regexp.MustCompile(`[^.!?]+[.!?]?`)
)

// LegacyGenerator is the rule-based generator. It needs no model: keyword
// cues in each scene pick the primitives (axes, scatter plots, equations,
// circles, arrows, bullet lists) drawn under the scene title.
type LegacyGenerator struct {
	opts Options
}

// NewLegacyGenerator creates the rule-based strategy.
func NewLegacyGenerator(opts Options) *LegacyGenerator {
	return &LegacyGenerator{opts: opts.withDefaults()}
}

// ID implements Strategy.
func (g *LegacyGenerator) ID() models.StrategyID { return models.StrategyLegacyGenerator }

// Generate implements Strategy.
func (g *LegacyGenerator) Generate(_ context.Context, sb *models.Storyboard) *models.CodeCandidate {
	topic := topicType(sb)
	names := MethodNames(sb.Scenes)
	methods := make([]method, len(sb.Scenes))
	for i, scene := range sb.Scenes {
		methods[i] = method{Name: names[i], Code: legacyMethod(names[i], scene, topic)}
	}
	return models.NewCandidate(renderScene(sb, g.opts, methods), g.ID())
}

func sceneText(scene models.StoryboardScene) string {
	parts := append([]string{scene.Title, scene.Narration, scene.AnimationInstruction}, scene.VisualElements...)
	return strings.ToLower(strings.Join(parts, " "))
}

// topicType scores the storyboard against each topic's keywords and
// returns the best match, or general when nothing matches. Ties resolve
// alphabetically.
func topicType(sb *models.Storyboard) string {
	var all strings.Builder
	all.WriteString(strings.ToLower(sb.Topic))
	for _, scene := range sb.Scenes {
		all.WriteString(" ")
		all.WriteString(sceneText(scene))
	}
	text := all.String()

	topics := make([]string, 0, len(topicKeywords))
	for t := range topicKeywords {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	best, bestScore := topicGeneral, 0
	for _, t := range topics {
		score := 0
		for _, kw := range topicKeywords[t] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	return best
}

func scenePrimitives(scene models.StoryboardScene, topic string) []primitive {
	text := sceneText(scene)
	var prims []primitive
	for _, cue := range primitiveCues {
		if len(prims) == maxPrimitives {
			break
		}
		hit := false
		for _, kw := range cue.keywords {
			if strings.Contains(text, kw) {
				hit = true
				break
			}
		}
		if !hit && cue.prim == primEquation && assignment.MatchString(scene.Narration+" "+strings.Join(scene.VisualElements, " ")) {
			hit = true
		}
		if !hit && cue.prim == primBullets && len(scene.VisualElements) >= 3 {
			hit = true
		}
		if hit {
			prims = append(prims, cue.prim)
		}
	}
	if len(prims) > 0 {
		return prims
	}
	switch topic {
	case topicRegression:
		return []primitive{primScatter}
	case topicMathematics:
		return []primitive{primEquation}
	case topicStatistics:
		return []primitive{primGraph}
	default:
		return []primitive{primText}
	}
}

type codeWriter struct {
	b strings.Builder
}

func (w *codeWriter) line(format string, args ...interface{}) {
	w.b.WriteString("        ")
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func legacyMethod(name string, scene models.StoryboardScene, topic string) string {
	w := &codeWriter{}
	fmt.Fprintf(&w.b, "    def %s(self):\n", name)
	w.line("if self.mobjects:")
	w.line("    self.play(FadeOut(*self.mobjects))")
	w.line("title = Text(%s, font_size=36).to_edge(UP)", pyString(strings.Join(strings.Fields(scene.Title), " ")))
	w.line("self.play(Write(title))")

	prims := scenePrimitives(scene, topic)
	vars := make([]string, 0, len(prims))
	var plays []string
	for _, prim := range prims {
		v, ps := buildPrimitive(w, prim, scene)
		vars = append(vars, v)
		plays = append(plays, ps...)
	}

	if len(vars) == 1 {
		w.line("%s.next_to(title, DOWN, buff=0.6)", vars[0])
	} else {
		w.line("content = VGroup(%s).arrange(RIGHT, buff=1)", strings.Join(vars, ", "))
		w.line("content.next_to(title, DOWN, buff=0.6)")
	}
	for _, p := range plays {
		w.line("%s", p)
	}
	w.line("self.wait(%s)", waitSeconds(scene.DurationSeconds))
	return w.b.String()
}

// buildPrimitive writes the construction lines for p and returns the
// variable holding the drawn group plus the play lines that animate it.
func buildPrimitive(w *codeWriter, p primitive, scene models.StoryboardScene) (string, []string) {
	switch p {
	case primScatter:
		w.line("plane = Axes(x_range=[0, 9, 1], y_range=[0, 18, 3], x_length=5, y_length=3.5)")
		w.line("samples = [(1, 2.1), (2, 3.9), (3, 6.1), (4, 7.8), (5, 9.9), (6, 12.2), (7, 13.8), (8, 16.1)]")
		w.line("dots = VGroup(*[Dot(plane.c2p(x, y), color=YELLOW) for x, y in samples])")
		w.line("fit = plane.plot(lambda x: 1.999 * x - 0.007, x_range=[0.5, 8.5], color=RED)")
		w.line("scatter = VGroup(plane, dots, fit)")
		return "scatter", []string{
			"self.play(Create(plane))",
			"self.play(FadeIn(dots))",
			"self.play(Create(fit))",
		}
	case primGraph:
		w.line("axes = Axes(x_range=[-3, 3, 1], y_range=[-2, 2, 1], x_length=5, y_length=3.5)")
		w.line("curve = axes.plot(lambda x: 0.25 * x ** 2 - 1, color=BLUE)")
		w.line("graph = VGroup(axes, curve)")
		return "graph", []string{
			"self.play(Create(axes))",
			"self.play(Create(curve))",
		}
	case primEquation:
		w.line("equation = MathTex(%s, font_size=44)", pyString(equationText(scene)))
		return "equation", []string{"self.play(Write(equation))"}
	case primCircle:
		w.line("circle = Circle(radius=1, color=BLUE, fill_opacity=0.3)")
		return "circle", []string{"self.play(Create(circle))"}
	case primArrow:
		w.line("arrow = Arrow(LEFT * 1.5, RIGHT * 1.5, color=GREEN)")
		return "arrow", []string{"self.play(Create(arrow))"}
	case primBullets:
		items := make([]string, 0, 4)
		for _, item := range bulletItems(scene) {
			items = append(items, pyString(item))
		}
		w.line("points = VGroup(*[Text(t, font_size=24) for t in [%s]])", strings.Join(items, ", "))
		w.line("points.arrange(DOWN, aligned_edge=LEFT, buff=0.3)")
		return "points", []string{
			"for point in points:",
			"    self.play(FadeIn(point))",
		}
	default:
		body := wrap(scene.Narration, narrationWidth, narrationLines)
		if body == "" {
			body = strings.Join(strings.Fields(scene.Title), " ")
		}
		w.line("body = Text(%s, font_size=26)", pyString(body))
		return "body", []string{"self.play(Write(body))"}
	}
}

func equationText(scene models.StoryboardScene) string {
	for _, src := range append(append([]string{}, scene.VisualElements...), scene.Narration) {
		if m := assignment.FindString(src); m != "" {
			return clip(strings.TrimRight(strings.TrimSpace(m), ". "), 40)
		}
	}
	return "y = mx + b"
}

func bulletItems(scene models.StoryboardScene) []string {
	var items []string
	for _, v := range scene.VisualElements {
		if v = strings.TrimSpace(v); v != "" {
			items = append(items, clip(v, 40))
		}
		if len(items) == 4 {
			return items
		}
	}
	if len(items) > 0 {
		return items
	}
	for _, s := range sentence.FindAllString(scene.Narration, -1) {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, clip(s, 40))
		}
		if len(items) == 3 {
			break
		}
	}
	if len(items) == 0 {
		items = append(items, clip(strings.Join(strings.Fields(scene.Title), " "), 40))
	}
	return items
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
