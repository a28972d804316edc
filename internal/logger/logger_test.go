package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manik0107/VATA/internal/models"
)

func failingVerdict() models.ValidationVerdict {
	return models.FailVerdict(models.StageLogic, models.Diagnostic{
		Kind:    models.KindLogic,
		Message: "2 rule violations",
		Line:    4,
		Violations: []models.RuleViolation{
			{RuleID: "MCE001", Message: "ShowCreation was removed; use Create", Line: 4},
			{RuleID: "MCE002", Message: "TextMobject was removed; use Text", Line: 9},
		},
	}, 12*time.Millisecond)
}

func sampleReport() *models.ProvenanceReport {
	return &models.ProvenanceReport{
		RunID:         "run-1",
		Topic:         "Linear Regression",
		ElapsedMS:     90500,
		Outcome:       models.OutcomeSucceeded,
		FinalStrategy: models.StrategyChunkedScene,
		Strategies: []models.StrategyRecord{
			{Strategy: models.StrategyFullGeneration, StopReason: models.StopNoProgress, Attempts: make([]models.AttemptRecord, 3)},
			{Strategy: models.StrategyChunkedScene, StopReason: models.StopSucceeded, Attempts: make([]models.AttemptRecord, 1)},
		},
	}
}

func TestNormalizeLogLevel(t *testing.T) {
	tests := map[string]string{
		"":       "info",
		"DEBUG":  "debug",
		" warn ": "warn",
		"loud":   "info",
		"trace":  "trace",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeLogLevel(in), "level %q", in)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewConsoleLogger(buf, "warn")

	l.Debugf("hidden %d", 1)
	l.Infof("hidden too")
	l.Warnf("shown %s", "warning")
	l.Errorf("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warning\n")
	assert.Contains(t, out, "[ERROR] shown error\n")
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	l := NewConsoleLogger(nil, "trace")
	assert.NotPanics(t, func() {
		l.Infof("nothing")
		l.LogOutcome(sampleReport())
	})
}

func TestConsoleLoggerVerdicts(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewConsoleLogger(buf, "debug")
	c := models.NewCandidate("x = 1\n", models.StrategyFullGeneration)

	l.LogVerdict(c, failingVerdict())
	l.LogVerdict(c, models.PassVerdict(250*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "[WARN] Candidate full-generation#0 failed logic stage: logic-error (line 4): 2 rule violations")
	assert.Contains(t, out, "[DEBUG]   - [MCE001] line 4: ShowCreation was removed; use Create")
	assert.Contains(t, out, "[DEBUG]   - [MCE002] line 9")
	assert.Contains(t, out, "[INFO] Candidate full-generation#0 passed all stages (250ms)")
}

func TestConsoleLoggerRepairAndTransition(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewConsoleLogger(buf, "info")
	in := models.NewCandidate("x\n", models.StrategyChunkedScene)

	l.LogRepair(models.RepairAttempt{Input: in, Output: in.Derive("y\n"), Elapsed: 2 * time.Second})
	l.LogRepair(models.RepairAttempt{Input: in, Elapsed: time.Second, Err: errors.New("503 UNAVAILABLE")})
	l.LogTransition("Trying(0)", "Repairing(0,0)")

	out := buf.String()
	assert.Contains(t, out, "[INFO] Repaired chunked-scene#0 -> chunked-scene#1 (2.0s)")
	assert.Contains(t, out, "[WARN] Repair of chunked-scene#0 failed after 1.0s: 503 UNAVAILABLE")
	assert.NotContains(t, out, "Transition", "transitions are debug output")
}

func TestConsoleLoggerOutcome(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewConsoleLogger(buf, "debug")
	l.LogOutcome(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "=== Run Summary ===")
	assert.Contains(t, out, "Outcome:    succeeded")
	assert.Contains(t, out, "Strategy:   chunked-scene")
	assert.Contains(t, out, "Candidates: 4 validated, 0 repairs")
	assert.Contains(t, out, "Duration:   1m30s")
	assert.Contains(t, out, "  - full-generation: no-progress after 3 candidates")
}

func TestConsoleLoggerPrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewConsoleLogger(buf, "info")
	base.WithPrefix("intro.json").LogStrategyStart(0, models.StrategyFullGeneration)

	assert.Contains(t, buf.String(), "[INFO] [intro.json] Trying strategy 1: full-generation\n")
}

func TestConsoleLoggerConcurrentWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewConsoleLogger(buf, "info")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(l *ConsoleLogger) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.Infof("line %d", j)
			}
		}(base.WithPrefix("run"))
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 160)
	for _, line := range lines {
		assert.Contains(t, line, "[INFO] [run] line ")
	}
}

func TestFileLoggerWritesRotatingLog(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "debug")
	require.NoError(t, err)
	defer fl.Close()

	fl.Debugf("validator ready")
	fl.Tracef("too verbose")
	fl.LogRateLimitCountdown(30*time.Second, 30*time.Second)

	data, err := os.ReadFile(filepath.Join(dir, "vata.log"))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "=== VATA log opened")
	assert.Contains(t, out, "[DEBUG] validator ready")
	assert.Contains(t, out, "[WARN] Rate limited: retrying in 30.0s")
	assert.NotContains(t, out, "too verbose")
	assert.DirExists(t, filepath.Join(dir, "runs"))
}

func TestFileLoggerRunTranscript(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	fl.Infof("shared line")
	run := fl.ForRun()
	run.LogStrategyStart(0, models.StrategyFullGeneration)
	run.LogOutcome(sampleReport())

	transcript, err := os.ReadFile(filepath.Join(dir, "runs", "run-1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(transcript), "Trying strategy 1: full-generation")
	assert.Contains(t, string(transcript), "Outcome:    succeeded")
	assert.NotContains(t, string(transcript), "shared line")

	target, err := os.Readlink(filepath.Join(dir, "runs", "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, "run-1.log", target)

	shared, err := os.ReadFile(filepath.Join(dir, "vata.log"))
	require.NoError(t, err)
	assert.Contains(t, string(shared), "shared line")
	assert.Contains(t, string(shared), "Trying strategy 1: full-generation")

	assert.NoError(t, run.Close(), "run loggers do not own the file")
}

func TestFileLoggerSaveTranscriptErrors(t *testing.T) {
	fl, err := NewFileLogger(t.TempDir(), "info")
	require.NoError(t, err)
	defer fl.Close()

	path, err := fl.SaveTranscript("ignored")
	assert.NoError(t, err)
	assert.Empty(t, path)

	_, err = fl.ForRun().SaveTranscript("")
	assert.Error(t, err)
}

func TestMultiLoggerFansOut(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	m := NewMultiLogger(NewConsoleLogger(a, "info"), nil, NewConsoleLogger(b, "error"))

	m.Infof("%d%% done", 50)
	m.Errorf("boom")
	m.LogStrategyStart(1, models.StrategyLegacyGenerator)

	assert.Contains(t, a.String(), "[INFO] 50% done")
	assert.Contains(t, a.String(), "Trying strategy 2: legacy-generator")
	assert.NotContains(t, b.String(), "50% done")
	assert.Contains(t, b.String(), "[ERROR] boom")
}
