package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesLoad(t *testing.T) {
	rs := DefaultRules()
	assert.Equal(t, "manim-ce-0.18", rs.Version)
	require.NotEmpty(t, rs.Rules)

	kinds := map[RuleKind]bool{}
	for _, r := range rs.Rules {
		kinds[r.Kind] = true
	}
	for _, k := range []RuleKind{RuleCall, RuleKeyword, RuleAttribute, RuleImport, RulePattern} {
		assert.True(t, kinds[k], "default table has no %s rule", k)
	}

	sorted := rs.Sorted()
	for i := 1; i < len(sorted); i++ {
		assert.Less(t, sorted[i-1].ID, sorted[i].ID)
	}
}

func TestParseRulesErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty table", "version: x\nrules: []\n", "invalid rules"},
		{"unknown kind", "rules:\n  - id: A\n    kind: magic\n    message: m\n", "invalid rules"},
		{"call without names", "rules:\n  - id: A\n    kind: call\n    message: m\n", "invalid rules"},
		{"bad regex", "rules:\n  - id: A\n    kind: pattern\n    pattern: '('\n    message: m\n", "invalid pattern"},
		{"duplicate id", "rules:\n  - {id: A, kind: call, names: [X], message: m}\n  - {id: A, kind: call, names: [Y], message: m}\n", "duplicate rule id"},
		{"not yaml", "rules: [", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `version: custom
rules:
  - id: X001
    kind: attribute
    names: [set_fill_opacity]
    message: "use set_fill(opacity=...)"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rs, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", rs.Version)

	src := "sq = Square()\nsq.set_fill_opacity(0.5)\n"
	violations := scanSource(t, rs, src)
	require.Len(t, violations, 1)
	assert.Equal(t, "X001", violations[0].RuleID)
	assert.Equal(t, 2, violations[0].Line)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	rs, err = LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, "manim-ce-0.18", rs.Version)
}

func TestRuleSubject(t *testing.T) {
	rs := DefaultRules()
	for _, r := range rs.Rules {
		assert.NotEmpty(t, r.Subject(), r.ID)
		if r.Kind == RuleKeyword && len(r.Callables) > 0 {
			assert.True(t, strings.Contains(r.Subject(), " in "), r.ID)
		}
	}
}

func TestFilterStderr(t *testing.T) {
	stderr := strings.Join([]string{
		"/usr/lib/python3/site-packages/x.py:1: UserWarning: pkg_resources is deprecated as an API",
		"  import pkg_resources",
		"INFO     Animation 0 : Partial movie file written",
		"Traceback (most recent call last):",
		`  File "candidate.py", line 7, in construct`,
		"    self.play(Create(c))",
		"NameError: name 'c' is not defined",
	}, "\n")

	got := FilterStderr(stderr)
	assert.Equal(t, "Traceback (most recent call last):\nFile \"candidate.py\", line 7, in construct\nNameError: name 'c' is not defined", got)
}

func TestFilterStderrFallsBackToTail(t *testing.T) {
	noise := strings.Repeat("x", 800)
	got := FilterStderr("segfault somewhere\n" + noise)
	assert.Len(t, got, 500)
	assert.Equal(t, strings.Repeat("x", 500), got)

	assert.Equal(t, "", FilterStderr("  \n"))
}

func TestFilterStderrTailKeepsValidUTF8(t *testing.T) {
	// 900 bytes of 3-byte runes; a 500-byte cut lands inside a rune
	got := FilterStderr("segfault\n" + strings.Repeat("€", 300))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("€", 166), got)
}

func TestTracebackLine(t *testing.T) {
	stderr := `Traceback (most recent call last):
  File "/tmp/vata-scope-1/candidate.py", line 12, in <module>
    main()
  File "/tmp/vata-scope-1/candidate.py", line 9, in main
    helper()
  File "/usr/lib/python3.11/site-packages/manim/scene.py", line 300, in helper
ValueError: nope`
	assert.Equal(t, 9, TracebackLine(stderr, CandidateFile))
	assert.Equal(t, 0, TracebackLine("no frames here", CandidateFile))
}
