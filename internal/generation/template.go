package generation

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"text/template"

	"github.com/Manik0107/VATA/internal/models"
)

const sceneSource = `from manim import *


class {{.ClassName}}({{.BaseClass}}):
    def {{.EntryMethod}}(self):
{{- range .Methods}}
        self.{{.Name}}()
{{- end}}
        if self.mobjects:
            self.play(FadeOut(*self.mobjects))
        self.wait(1)
{{- range .Methods}}

{{.Code}}
{{- end}}
`

const titleCardSource = `    def {{.Name}}(self):
        if self.mobjects:
            self.play(FadeOut(*self.mobjects))
        title = Text({{py .Title}}, font_size=40).to_edge(UP)
        self.play(FadeIn(title))
{{- if .Body}}
        body = Text({{py .Body}}, font_size=26).next_to(title, DOWN, buff=0.8)
        self.play(Write(body))
{{- end}}
        self.wait({{.Wait}})`

var (
	funcs         = template.FuncMap{"py": pyString}
	sceneTmpl     = template.Must(template.New("scene").Funcs(funcs).Parse(sceneSource))
	titleCardTmpl = template.Must(template.New("title-card").Funcs(funcs).Parse(titleCardSource))
)

const (
	narrationWidth = 48
	narrationLines = 4
	defaultWait    = 2.0
	maxWait        = 10.0
)

type method struct {
	Name string
	Code string
}

type sceneData struct {
	ClassName   string
	BaseClass   string
	EntryMethod string
	Methods     []method
}

type titleCard struct {
	Name  string
	Title string
	Body  string
	Wait  string
}

// renderScene assembles the module around already rendered methods. Each
// method's code is indented for the class body.
func renderScene(sb *models.Storyboard, opts Options, methods []method) string {
	data := sceneData{
		ClassName:   ClassName(sb),
		BaseClass:   opts.BaseClass,
		EntryMethod: opts.EntryMethod,
		Methods:     make([]method, len(methods)),
	}
	for i, m := range methods {
		data.Methods[i] = method{Name: m.Name, Code: strings.TrimRight(m.Code, "\n ")}
	}
	var buf bytes.Buffer
	// The templates only interpolate escaped strings and sanitised names,
	// so execution cannot fail on storyboard content.
	if err := sceneTmpl.Execute(&buf, data); err != nil {
		panic(err)
	}
	return buf.String()
}

func renderTitleCard(name string, scene models.StoryboardScene) string {
	card := titleCard{
		Name:  name,
		Title: strings.Join(strings.Fields(scene.Title), " "),
		Body:  wrap(scene.Narration, narrationWidth, narrationLines),
		Wait:  waitSeconds(scene.DurationSeconds),
	}
	var buf bytes.Buffer
	if err := titleCardTmpl.Execute(&buf, card); err != nil {
		panic(err)
	}
	return buf.String()
}

// wrap word-wraps s into at most maxLines lines of about width runes.
// Overflow is cut with an ellipsis.
func wrap(s string, width, maxLines int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	var cur strings.Builder
	for i, w := range words {
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(w)) > width {
			lines = append(lines, cur.String())
			cur.Reset()
			if len(lines) == maxLines {
				lines[maxLines-1] += " ..."
				return strings.Join(lines, "\n")
			}
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
		if i == len(words)-1 {
			lines = append(lines, cur.String())
		}
	}
	return strings.Join(lines, "\n")
}

func waitSeconds(d float64) string {
	switch {
	case d <= 0:
		d = defaultWait
	case d > maxWait:
		d = maxWait
	}
	return strconv.FormatFloat(d, 'f', 1, 64)
}

// TemplateFallback renders every scene as a title card with its narration.
// It uses only Text, FadeIn, FadeOut, Write and wait, and all storyboard
// text is escaped, so its output always parses and passes the default
// rule table.
type TemplateFallback struct {
	opts Options
}

// NewTemplateFallback creates the deterministic template strategy.
func NewTemplateFallback(opts Options) *TemplateFallback {
	return &TemplateFallback{opts: opts.withDefaults()}
}

// ID implements Strategy.
func (t *TemplateFallback) ID() models.StrategyID { return models.StrategyTemplateFallback }

// Generate implements Strategy.
func (t *TemplateFallback) Generate(_ context.Context, sb *models.Storyboard) *models.CodeCandidate {
	return models.NewCandidate(t.Render(sb), models.StrategyTemplateFallback)
}

// Render returns the template source for sb.
func (t *TemplateFallback) Render(sb *models.Storyboard) string {
	names := MethodNames(sb.Scenes)
	methods := make([]method, len(sb.Scenes))
	for i, scene := range sb.Scenes {
		methods[i] = method{Name: names[i], Code: renderTitleCard(names[i], scene)}
	}
	return renderScene(sb, t.opts, methods)
}
