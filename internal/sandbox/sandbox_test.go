package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manik0107/VATA/internal/models"
)

func newShellSandbox(t *testing.T, env map[string]string, pass ...string) *Sandbox {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("sandbox requires a unix shell")
	}
	sb, err := New(Options{
		Root:        t.TempDir(),
		Interpreter: "/bin/sh",
		PassEnv:     pass,
		Getenv:      func(k string) string { return env[k] },
	})
	require.NoError(t, err)
	return sb
}

func TestNewMissingInterpreter(t *testing.T) {
	_, err := New(Options{Interpreter: "definitely-not-a-python-binary"})
	require.Error(t, err)
	assert.True(t, models.IsEnvironmentFault(err))
}

func TestExecCapturesOutputAndExitCode(t *testing.T) {
	sb := newShellSandbox(t, map[string]string{"PATH": os.Getenv("PATH")})
	scope, err := sb.NewScope()
	require.NoError(t, err)
	defer scope.Close()

	res, err := scope.Run(context.Background(), 5*time.Second, "-c", "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestExecEnvironmentAllowlist(t *testing.T) {
	env := map[string]string{
		"PATH":       os.Getenv("PATH"),
		"SECRET":     "hunter2",
		"PYTHONPATH": "/opt/lib",
	}
	sb := newShellSandbox(t, env, "PYTHONPATH")
	scope, err := sb.NewScope()
	require.NoError(t, err)
	defer scope.Close()

	res, err := scope.Run(context.Background(), 5*time.Second, "-c", `printf '%s|%s|%s|%s' "$HOME" "$SECRET" "$PYTHONPATH" "$PYTHONHASHSEED"`)
	require.NoError(t, err)

	parts := strings.Split(res.Stdout, "|")
	require.Len(t, parts, 4)
	assert.Equal(t, scope.Dir(), parts[0])
	assert.Empty(t, parts[1], "host variables outside the allowlist must not leak")
	assert.Equal(t, "/opt/lib", parts[2])
	assert.Equal(t, "0", parts[3])
}

func TestExecTimeoutKillsProcessGroup(t *testing.T) {
	sb := newShellSandbox(t, map[string]string{"PATH": os.Getenv("PATH")})
	scope, err := sb.NewScope()
	require.NoError(t, err)
	defer scope.Close()

	marker := filepath.Join(scope.Dir(), "survivor")
	script := "(sleep 2; touch " + marker + ") & while true; do :; done"

	start := time.Now()
	res, err := scope.Run(context.Background(), 300*time.Millisecond, "-c", script)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second)

	time.Sleep(2500 * time.Millisecond)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "background child outlived the timeout")
}

func TestExecCallerCancellation(t *testing.T) {
	sb := newShellSandbox(t, map[string]string{"PATH": os.Getenv("PATH")})
	scope, err := sb.NewScope()
	require.NoError(t, err)
	defer scope.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := scope.Run(ctx, time.Minute, "-c", "sleep 30")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, res.TimedOut, "caller cancellation is not a candidate timeout")
}

func TestScopesAreIsolated(t *testing.T) {
	sb := newShellSandbox(t, map[string]string{"PATH": os.Getenv("PATH")})

	first, err := sb.NewScope()
	require.NoError(t, err)
	_, err = first.WriteFile("candidate.py", []byte("x = 1\n"))
	require.NoError(t, err)

	second, err := sb.NewScope()
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, first.Dir(), second.Dir())

	res, err := second.Run(context.Background(), 5*time.Second, "-c", "ls")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(res.Stdout))

	require.NoError(t, first.Close())
	_, err = os.Stat(first.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestSanitizeAndTruncation(t *testing.T) {
	sb := newShellSandbox(t, map[string]string{"PATH": os.Getenv("PATH")})
	sb.opts.MaxOutputBytes = 16
	scope, err := sb.NewScope()
	require.NoError(t, err)
	defer scope.Close()

	msg := "File \"" + filepath.Join(scope.Dir(), "candidate.py") + "\", line 4"
	assert.Equal(t, `File "<sandbox>/candidate.py", line 4`, scope.Sanitize(msg))

	res, err := scope.Run(context.Background(), 5*time.Second, "-c", "printf '0123456789abcdefXYZ'")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", res.Stdout)
	assert.True(t, res.Truncated)
}

func TestExecKeepsDrainingPastOutputLimit(t *testing.T) {
	sb := newShellSandbox(t, map[string]string{"PATH": os.Getenv("PATH")})
	sb.opts.MaxOutputBytes = 16
	scope, err := sb.NewScope()
	require.NoError(t, err)
	defer scope.Close()

	// 200 KB is well past the pipe buffer, so the writer must keep reading
	script := `i=0; while [ $i -lt 2000 ]; do printf '%0100d\n' 0; i=$((i+1)); done; echo finished >&2`
	res, err := scope.Run(context.Background(), 10*time.Second, "-c", script)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Stdout, 16)
	assert.Equal(t, "finished\n", res.Stderr)
}

func TestLimitedWriterReportsWholeChunk(t *testing.T) {
	var buf strings.Builder
	lw := &limitedWriter{w: &buf, limit: 4}

	n, err := lw.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = lw.Write([]byte("gh"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "abcd", buf.String())
	assert.True(t, lw.truncated)
}

func TestExecSweepsOrphansAfterExit(t *testing.T) {
	sb := newShellSandbox(t, map[string]string{"PATH": os.Getenv("PATH")})
	scope, err := sb.NewScope()
	require.NoError(t, err)
	defer scope.Close()

	marker := filepath.Join(scope.Dir(), "orphan")
	res, err := scope.Run(context.Background(), 5*time.Second, "-c", "(sleep 1; touch "+marker+") >/dev/null 2>&1 & exit 0")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)

	time.Sleep(1500 * time.Millisecond)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "background child outlived its parent")
}
