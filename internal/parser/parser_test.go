package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manik0107/VATA/internal/models"
)

const agentJSON = `{
  "topic": "Linear Regression",
  "target_audience": "Beginner",
  "scenes": [
    {
      "scene_id": 1,
      "title": "Pizza prices",
      "visual_description": "A cyan scatter plot of pizza sizes; a price axis\n- a glowing best fit line",
      "narration": "Bigger pizzas cost more.",
      "animation_instruction": "FadeIn the dots one by one",
      "duration_seconds": 10
    },
    {
      "scene_id": 2,
      "title": "The line",
      "visual_description": "",
      "narration": "We draw the line that fits best.",
      "animation_instruction": "Create the line",
      "duration_seconds": 8
    }
  ],
  "reasoning": "Start from an analogy."
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"board.json":     FormatJSON,
		"board.YAML":     FormatYAML,
		"board.yml":      FormatYAML,
		"board.md":       FormatMarkdown,
		"board.markdown": FormatMarkdown,
		"board.txt":      FormatUnknown,
		"board":          FormatUnknown,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
	assert.Equal(t, "markdown", FormatMarkdown.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestJSONParserAcceptsAgentFieldNames(t *testing.T) {
	sb, err := NewJSONParser().Parse(strings.NewReader(agentJSON))
	require.NoError(t, err)
	require.NoError(t, sb.Validate())

	assert.Equal(t, "Linear Regression", sb.Topic)
	assert.Equal(t, "Beginner", sb.TargetAudience)
	require.Len(t, sb.Scenes, 2)

	first := sb.Scenes[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, []string{"A cyan scatter plot of pizza sizes", "a price axis", "a glowing best fit line"}, first.VisualElements)
	assert.Equal(t, "FadeIn the dots one by one", first.AnimationInstruction)
	assert.Equal(t, 10.0, first.DurationSeconds)

	assert.Equal(t, 2, sb.Scenes[1].Index)
	assert.Empty(t, sb.Scenes[1].VisualElements)
}

func TestJSONParserCanonicalFieldsWin(t *testing.T) {
	sb, err := NewJSONParser().Parse(strings.NewReader(`{"topic":"t","scenes":[
		{"index":1,"scene_id":7,"title":"a","visual_elements":["axes"],"visual_description":"ignored"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, sb.Scenes[0].Index)
	assert.Equal(t, []string{"axes"}, sb.Scenes[0].VisualElements)
}

func TestJSONParserMalformed(t *testing.T) {
	_, err := NewJSONParser().Parse(strings.NewReader(`{"topic": `))
	assert.ErrorContains(t, err, "failed to decode JSON")
}

func TestYAMLParser(t *testing.T) {
	src := `
topic: Fourier series
class_name: FourierScene
scenes:
  - title: Waves
    narration: Any signal is a sum of waves.
    visual_elements: [sine graph, circle]
  - title: Epicycles
    narration: Circles on circles.
    duration_seconds: 4.5
`
	sb, err := NewYAMLParser().Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.NoError(t, sb.Validate())

	assert.Equal(t, "FourierScene", sb.ClassName)
	require.Len(t, sb.Scenes, 2)
	assert.Equal(t, 1, sb.Scenes[0].Index, "missing indices are positional")
	assert.Equal(t, 2, sb.Scenes[1].Index)
	assert.Equal(t, []string{"sine graph", "circle"}, sb.Scenes[0].VisualElements)
	assert.Equal(t, 4.5, sb.Scenes[1].DurationSeconds)
}

func TestMarkdownParser(t *testing.T) {
	src := `---
target_audience: Beginner
---
# Linear Regression

Audience: ignored because frontmatter set it

## Scene 1: Pizza prices

Bigger pizzas
cost more.

Prices grow *steadily* with size.

- scatter of **pizza** sizes
- price axis

**Animation:** FadeIn the dots
**Duration:** 10s

## Scene 2 - The line

Narration: We draw the line that fits best.
Visuals: best fit line; residual arrows
`
	sb, err := NewMarkdownParser().Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.NoError(t, sb.Validate())

	assert.Equal(t, "Linear Regression", sb.Topic)
	assert.Equal(t, "Beginner", sb.TargetAudience)
	require.Len(t, sb.Scenes, 2)

	first := sb.Scenes[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "Pizza prices", first.Title)
	assert.Equal(t, "Bigger pizzas cost more.\n\nPrices grow steadily with size.", first.Narration)
	assert.Equal(t, []string{"scatter of pizza sizes", "price axis"}, first.VisualElements)
	assert.Equal(t, "FadeIn the dots", first.AnimationInstruction)
	assert.Equal(t, 10.0, first.DurationSeconds)

	second := sb.Scenes[1]
	assert.Equal(t, 2, second.Index)
	assert.Equal(t, "The line", second.Title)
	assert.Equal(t, "We draw the line that fits best.", second.Narration)
	assert.Equal(t, []string{"best fit line", "residual arrows"}, second.VisualElements)
}

func TestMarkdownParserPlainHeadings(t *testing.T) {
	src := "# Sorting\n\nAudience: Students\n\n## Bubbles\n\nSwap neighbours.\n\n## Merges\n\nSplit and merge.\n"
	sb, err := NewMarkdownParser().Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "Students", sb.TargetAudience)
	require.Len(t, sb.Scenes, 2)
	assert.Equal(t, "Merges", sb.Scenes[1].Title)
	assert.Equal(t, 2, sb.Scenes[1].Index)
}

func TestMarkdownParserBadDuration(t *testing.T) {
	_, err := NewMarkdownParser().Parse(strings.NewReader("# T\n\n## Scene 1: A\n\nDuration: soon\n"))
	assert.ErrorContains(t, err, `invalid duration "soon"`)
}

func TestParseSeconds(t *testing.T) {
	for in, want := range map[string]float64{"10": 10, "10s": 10, "7.5 seconds": 7.5, " 3 sec ": 3} {
		got, err := parseSeconds(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseSeconds("-1")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "regression.json", agentJSON)

	sb, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, sb.SourcePath)
	assert.Equal(t, 2, sb.SceneCount())
}

func TestParseFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseFile(writeFile(t, dir, "notes.txt", "hello"))
	assert.ErrorContains(t, err, "unknown file format")

	_, err = ParseFile(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to open file")

	_, err = ParseFile(writeFile(t, dir, "empty.yaml", "topic: nothing\nscenes: []\n"))
	assert.ErrorIs(t, err, models.ErrNoScenes)

	_, err = ParseFile(writeFile(t, dir, "gap.json", `{"topic":"t","scenes":[{"index":1,"title":"a"},{"index":3,"title":"b"}]}`))
	assert.ErrorContains(t, err, "indices must be contiguous")
}

func TestFilterStoryboardFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", "{}")
	b := writeFile(t, dir, "nested/b.md", "# b")
	writeFile(t, dir, "nested/b.report.json", "{}")
	writeFile(t, dir, "nested/scene.py", "")
	writeFile(t, dir, ".cache/c.yaml", "")

	files, err := FilterStoryboardFiles([]string{dir, a})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)

	_, err = FilterStoryboardFiles(nil)
	assert.Error(t, err)

	_, err = FilterStoryboardFiles([]string{filepath.Join(dir, "nested", "scene.py")})
	assert.ErrorContains(t, err, "unknown file format")

	writeFile(t, dir, "code/only.py", "")
	_, err = FilterStoryboardFiles([]string{filepath.Join(dir, "code")})
	assert.ErrorContains(t, err, "no storyboard files found")
}
