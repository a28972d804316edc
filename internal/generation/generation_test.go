package generation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manik0107/VATA/internal/llm"
	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/validation"
)

func regressionStoryboard() *models.Storyboard {
	return &models.Storyboard{
		Topic: "Linear Regression basics",
		Scenes: []models.StoryboardScene{
			{Index: 1, Title: "Introduction", Narration: "We want to predict sales from ad spend."},
			{Index: 2, Title: "The Best Fit Line", Narration: "The line y = mx + b minimises squared error.", VisualElements: []string{"scatter of samples", "regression line"}},
			{Index: 3, Title: "Summary", Narration: "Fit. Predict. Check residuals.", DurationSeconds: 4},
		},
	}
}

func staticChecks() *validation.Validator {
	return validation.NewWithStages(validation.SyntaxStage{}, validation.LogicStage{Rules: validation.DefaultRules()})
}

func TestMethodName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Introduction", "animate_introduction"},
		{"The Best  Fit Line!", "animate_the_best_fit_line"},
		{"  Step 2: Residuals ", "animate_step_2_residuals"},
		{"3 Key Ideas", "animate_section_3_key_ideas"},
		{"¿¡!?", "animate_section_"},
		{"Ünïcode Títle", "animate_ncode_ttle"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, MethodName(tt.title))
		})
	}
}

func TestMethodNamesAreUnique(t *testing.T) {
	scenes := []models.StoryboardScene{
		{Index: 1, Title: "Recap"},
		{Index: 2, Title: "Recap"},
		{Index: 3, Title: "Recap 2"},
	}
	assert.Equal(t, []string{"animate_recap", "animate_recap_2", "animate_recap_2_2"}, MethodNames(scenes))
}

func TestClassName(t *testing.T) {
	tests := []struct {
		name string
		sb   models.Storyboard
		want string
	}{
		{"topic words", models.Storyboard{Topic: "linear regression basics"}, "LinearRegressionAnimation"},
		{"already suffixed", models.Storyboard{Topic: "Fourier Animation"}, "FourierAnimation"},
		{"punctuation only", models.Storyboard{Topic: "?!"}, defaultClassName},
		{"leading digit", models.Storyboard{Topic: "3D shapes"}, "Scene3dShapesAnimation"},
		{"explicit", models.Storyboard{Topic: "x", ClassName: "My-Scene"}, "MyScene"},
		{"explicit keyword", models.Storyboard{Topic: "x", ClassName: "class"}, "classScene"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassName(&tt.sb))
		})
	}
}

func TestTemplateFallbackPassesStaticStages(t *testing.T) {
	sb := regressionStoryboard()
	sb.Scenes[0].Narration = `Quotes "inside", a backslash \ and a newline` + "\n" + `and tabs	too.`
	sb.Scenes[1].Title = `It's "tricky" {{ .Title }}`

	c := NewTemplateFallback(Options{}).Generate(context.Background(), sb)
	assert.Equal(t, models.StrategyTemplateFallback, c.Strategy())
	assert.Equal(t, 0, c.Attempt())

	verdict, err := staticChecks().Validate(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, verdict.Passed(), "template failed validation: %v\n%s", verdict.Diagnostic, c.Source())

	src := c.Source()
	assert.True(t, strings.HasPrefix(src, "from manim import *\n"))
	assert.Contains(t, src, "class LinearRegressionAnimation(Scene):")
	assert.Contains(t, src, "        self.animate_introduction()\n        self.animate_its_tricky_title()\n        self.animate_summary()\n")
	assert.Contains(t, src, "self.wait(4.0)")
	assert.Equal(t, 4, strings.Count(src, "if self.mobjects:"))
}

func TestTemplateFallbackIsDeterministic(t *testing.T) {
	tmpl := NewTemplateFallback(Options{BaseClass: "MovingCameraScene"})
	a := tmpl.Render(regressionStoryboard())
	b := tmpl.Render(regressionStoryboard())
	assert.Equal(t, a, b)
	assert.Contains(t, a, "(MovingCameraScene):")
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "", wrap("  ", 10, 2))
	assert.Equal(t, "one two\nthree", wrap("one two three", 8, 3))
	assert.Equal(t, "aaa bbb\nccc ddd ...", wrap("aaa bbb ccc ddd eee fff", 7, 2))
}

func TestLegacyGeneratorPassesStaticStages(t *testing.T) {
	sb := regressionStoryboard()
	sb.Scenes = append(sb.Scenes,
		models.StoryboardScene{Index: 4, Title: "Vectors", Narration: "An arrow shows direction around a circle."},
		models.StoryboardScene{Index: 5, Title: "Plain words", Narration: "Nothing visual here."},
	)

	c := NewLegacyGenerator(Options{}).Generate(context.Background(), sb)
	assert.Equal(t, models.StrategyLegacyGenerator, c.Strategy())

	verdict, err := staticChecks().Validate(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, verdict.Passed(), "legacy output failed validation: %v\n%s", verdict.Diagnostic, c.Source())

	src := c.Source()
	assert.Contains(t, src, "plane.plot(")
	assert.Contains(t, src, `MathTex("y = mx + b minimises squared error"`)
	assert.Contains(t, src, "circle = Circle(")
	assert.Contains(t, src, "arrow = Arrow(")
	assert.NotContains(t, src, "ShowCreation")
}

func TestTopicType(t *testing.T) {
	assert.Equal(t, topicRegression, topicType(regressionStoryboard()))
	assert.Equal(t, topicGeneral, topicType(&models.Storyboard{Topic: "Cooking", Scenes: []models.StoryboardScene{{Index: 1, Title: "Eggs"}}}))
	assert.Equal(t, topicMathematics, topicType(&models.Storyboard{Topic: "Proof of a theorem"}))
}

func TestScenePrimitivesFallBackToTopic(t *testing.T) {
	plain := models.StoryboardScene{Index: 1, Title: "Hello", Narration: "Welcome"}
	assert.Equal(t, []primitive{primScatter}, scenePrimitives(plain, topicRegression))
	assert.Equal(t, []primitive{primText}, scenePrimitives(plain, topicGeneral))

	busy := models.StoryboardScene{Index: 1, Title: "Graph of a circle", Narration: "An arrow", VisualElements: []string{"a", "b", "c"}}
	assert.Len(t, scenePrimitives(busy, topicGeneral), maxPrimitives)
}

func TestFullGeneration(t *testing.T) {
	var got llm.Request
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		got = req
		return "```python\nfrom manim import *\n\nclass A(Scene):\n    def construct(self):\n        pass\n```", nil
	})

	c := NewFullGeneration(client, Options{Temperature: 0.7, MaxTokens: 16384}).Generate(context.Background(), regressionStoryboard())
	assert.Equal(t, models.StrategyFullGeneration, c.Strategy())
	assert.True(t, strings.HasPrefix(c.Source(), "from manim import *"))

	assert.Equal(t, float32(0.7), got.Temperature)
	assert.Equal(t, 16384, got.MaxTokens)
	assert.Contains(t, got.Prompt, "class LinearRegressionAnimation(Scene)")
	assert.Contains(t, got.Prompt, "self.animate_the_best_fit_line()")
	assert.Contains(t, got.Prompt, "### Scene 2: The Best Fit Line")
	assert.Contains(t, got.Prompt, "- scatter of samples")
}

func TestFullGenerationFailureYieldsPlaceholder(t *testing.T) {
	for name, client := range map[string]llm.Client{
		"error": llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("503 UNAVAILABLE\nretry later")
		}),
		"empty": llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
			return "```\n```", nil
		}),
	} {
		t.Run(name, func(t *testing.T) {
			c := NewFullGeneration(client, Options{}).Generate(context.Background(), regressionStoryboard())
			assert.Equal(t, models.StrategyFullGeneration, c.Strategy())
			assert.True(t, strings.HasPrefix(c.Source(), "# full-generation produced no code"))
			assert.Equal(t, 1, strings.Count(c.Source(), "\n"))

			verdict, err := staticChecks().Validate(context.Background(), c)
			require.NoError(t, err)
			assert.Equal(t, models.StageSyntax, verdict.StageReached)
			assert.False(t, verdict.Passed())
		})
	}
}

func TestChunkedSceneAssemblesMethods(t *testing.T) {
	var calls int32
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return "```python\nfrom manim import *\n\ndef whatever(self):\n    dot = Dot()\n    self.play(Create(dot))\n```", nil
		case 2:
			return "", errors.New("quota exceeded")
		default:
			return "Sure!\n\n    def animate_summary(self):\n        self.wait(1)\n\n    def helper(self):\n        return 1\n", nil
		}
	})

	c := NewChunkedScene(client, Options{}).Generate(context.Background(), regressionStoryboard())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, models.StrategyChunkedScene, c.Strategy())

	src := c.Source()
	assert.Contains(t, src, "    def animate_introduction(self):\n        dot = Dot()\n        self.play(Create(dot))")
	assert.Contains(t, src, "    def animate_the_best_fit_line(self):\n        if self.mobjects:")
	assert.Contains(t, src, "    def animate_summary(self):\n        self.wait(1)\n\n    def helper(self):\n        return 1")
	assert.NotContains(t, src, "whatever")

	verdict, err := staticChecks().Validate(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, verdict.Passed(), "chunked output failed validation: %v\n%s", verdict.Diagnostic, src)
}

func TestChunkedSceneAllFailed(t *testing.T) {
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "I cannot help with that.", nil
	})
	c := NewChunkedScene(client, Options{}).Generate(context.Background(), regressionStoryboard())
	assert.True(t, strings.HasPrefix(c.Source(), "# chunked-scene produced no code: every scene call failed"))
}

func TestMethodBlock(t *testing.T) {
	code, ok := methodBlock("import numpy as np\n\tdef f(self):\n\t\treturn 1\nprint('x')\n", "animate_x")
	require.True(t, ok)
	assert.Equal(t, "    def animate_x(self):\n        return 1", code)

	_, ok = methodBlock("x = 1\n", "animate_x")
	assert.False(t, ok)
}

func TestOrdered(t *testing.T) {
	ids := []models.StrategyID{}
	for _, s := range Ordered(llm.ClientFunc(nil), Options{}) {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []models.StrategyID{
		models.StrategyFullGeneration,
		models.StrategyChunkedScene,
		models.StrategyLegacyGenerator,
	}, ids)
}
