package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manik0107/VATA/internal/models"
	"github.com/Manik0107/VATA/internal/validation"
)

const goodScene = `from manim import *


class Demo(Scene):
    def construct(self):
        self.play(Create(Circle()))
`

const legacyScene = `from manim import *


class Demo(Scene):
    def construct(self):
        self.play(ShowCreation(Circle()))
        self.play(Write(TextMobject("hi")))
`

func TestValidateStatic(t *testing.T) {
	dir := t.TempDir()
	good := writeTestFile(t, dir, "good.py", goodScene)
	bad := writeTestFile(t, dir, "bad.py", legacyScene)
	broken := writeTestFile(t, dir, "broken.py", "def f(:\n    pass\n")

	output, err := executeRoot(t, "validate", "--static", good)
	require.NoError(t, err, output)
	assert.Contains(t, output, "good.py passed")

	output, err = executeRoot(t, "validate", "--static", good, bad, broken, filepath.Join(dir, "missing.py"))
	require.ErrorIs(t, err, errValidationFailed)
	assert.Contains(t, output, "bad.py failed logic stage")
	assert.Contains(t, output, "[MCE001] line 6")
	assert.Contains(t, output, "[MCE002] line 7")
	assert.Contains(t, output, "broken.py failed syntax stage")
	assert.Contains(t, output, "missing.py")
	assert.Contains(t, output, "3 of 4 file(s) failed validation")
}

func TestValidateCustomRules(t *testing.T) {
	dir := t.TempDir()
	rules := writeTestFile(t, dir, "rules.yaml", `rules:
  - id: H001
    kind: call
    names: [Create]
    message: "use Write instead"
`)
	scene := writeTestFile(t, dir, "scene.py", goodScene)

	output, err := executeRoot(t, "validate", "--static", "--rules", rules, scene)
	require.Error(t, err)
	assert.Contains(t, output, "[H001]")
}

func TestValidateFullStagesWithHermeticInterpreter(t *testing.T) {
	dir := t.TempDir()
	scene := writeTestFile(t, dir, "scene.py", goodScene)

	output, err := executeRoot(t, "--config", hermeticConfig(t, dir), "validate", scene)
	require.ErrorIs(t, err, errValidationFailed)
	assert.Contains(t, output, "scene.py failed runtime stage")
	assert.Contains(t, output, "process exited with status 1")
}

type faultValidator struct{}

func (faultValidator) Validate(context.Context, *models.CodeCandidate) (models.ValidationVerdict, error) {
	return models.ValidationVerdict{}, models.NewEnvironmentFault("start sandboxed process", errors.New("exec format error"))
}

func TestValidateFilesStopsOnEnvironmentFault(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.py", goodScene)

	var out strings.Builder
	err := validateFiles(context.Background(), faultValidator{}, []string{a}, &out)
	require.Error(t, err)
	assert.True(t, models.IsEnvironmentFault(err))
	assert.NotErrorIs(t, err, errValidationFailed)
}

func TestValidateFilesStaticValidator(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.py", goodScene)
	v := validation.NewWithStages(validation.SyntaxStage{}, validation.LogicStage{Rules: validation.DefaultRules()})

	var out strings.Builder
	require.NoError(t, validateFiles(context.Background(), v, []string{a}, &out))
	assert.Contains(t, out.String(), "a.py passed all stages")
}
