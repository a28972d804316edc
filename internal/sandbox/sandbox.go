// Package sandbox runs untrusted candidate programs in a throwaway scope:
// a fresh working directory, an allowlisted environment, an optional
// network namespace, resource limits and a process group that is killed
// as a whole on timeout.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Manik0107/VATA/internal/filelock"
	"github.com/Manik0107/VATA/internal/models"
)

// DefaultMaxOutputBytes caps captured stdout and stderr per stream.
const DefaultMaxOutputBytes = 1 << 20

// Placeholder replaces the scope directory in captured output so that
// diagnostics do not depend on the temp path chosen for a run.
const Placeholder = "<sandbox>"

// Options configures a Sandbox.
type Options struct {
	// Root is the parent directory for scopes. Empty means os.TempDir().
	Root string

	// Interpreter runs candidate programs (resolved with exec.LookPath).
	Interpreter string

	// IsolateNetwork requests a private network namespace where supported.
	IsolateNetwork bool

	// MemoryLimitMB, CPUSeconds and MaxProcesses are rlimits; 0 disables.
	MemoryLimitMB int
	CPUSeconds    int
	MaxProcesses  int

	// PassEnv lists host variables copied into the child environment.
	PassEnv []string

	// MaxOutputBytes caps each captured stream (0 = DefaultMaxOutputBytes).
	MaxOutputBytes int

	// Getenv reads the host environment. Nil means os.Getenv.
	Getenv func(string) string
}

// Sandbox creates scopes that share one interpreter and one set of limits.
// Safe for concurrent use.
type Sandbox struct {
	opts        Options
	interpreter string
}

// New resolves the interpreter and prepares the scope root. A missing
// interpreter or an unusable root is an environment fault: no candidate
// can be judged without them.
func New(opts Options) (*Sandbox, error) {
	if opts.Interpreter == "" {
		opts.Interpreter = "python3"
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	path, err := exec.LookPath(opts.Interpreter)
	if err != nil {
		return nil, models.NewEnvironmentFault("locate interpreter", err)
	}

	if opts.Root != "" {
		if err := os.MkdirAll(opts.Root, 0755); err != nil {
			return nil, models.NewEnvironmentFault("create sandbox root", err)
		}
	}

	return &Sandbox{opts: opts, interpreter: path}, nil
}

// Interpreter returns the resolved interpreter path.
func (s *Sandbox) Interpreter() string {
	return s.interpreter
}

// Scope is a single-use working directory. Nothing written to it survives
// Close, and nothing from one scope is visible to another.
type Scope struct {
	sb       *Sandbox
	dir      string
	realDir  string
	isolated bool
}

// NewScope creates a fresh scope directory.
func (s *Sandbox) NewScope() (*Scope, error) {
	dir, err := os.MkdirTemp(s.opts.Root, "vata-scope-*")
	if err != nil {
		return nil, models.NewEnvironmentFault("create sandbox scope", err)
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		real = dir
	}
	return &Scope{sb: s, dir: dir, realDir: real, isolated: s.opts.IsolateNetwork}, nil
}

// Dir returns the scope directory.
func (sc *Scope) Dir() string {
	return sc.dir
}

// WriteFile writes data to name inside the scope and returns its path.
func (sc *Scope) WriteFile(name string, data []byte) (string, error) {
	path := filepath.Join(sc.dir, filepath.Base(name))
	if err := filelock.AtomicWrite(path, data); err != nil {
		return "", models.NewEnvironmentFault("write sandbox file", err)
	}
	return path, nil
}

// Close removes the scope and everything in it.
func (sc *Scope) Close() error {
	return os.RemoveAll(sc.dir)
}

// Sanitize replaces the scope path in s with Placeholder.
func (sc *Scope) Sanitize(s string) string {
	if sc.realDir != sc.dir {
		s = strings.ReplaceAll(s, sc.realDir, Placeholder)
	}
	return strings.ReplaceAll(s, sc.dir, Placeholder)
}

// Result captures one sandboxed execution.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Truncated bool
	Isolated  bool
	Duration  time.Duration
	PID       int
}

// Run executes the interpreter with args inside the scope.
func (sc *Scope) Run(ctx context.Context, timeout time.Duration, args ...string) (*Result, error) {
	return sc.Exec(ctx, timeout, sc.sb.interpreter, args...)
}

// Exec executes name with args inside the scope, bounded by timeout.
//
// A timeout is reported through Result.TimedOut, not as an error. The
// returned error is either ctx.Err() when the caller cancelled, or an
// *models.EnvironmentFault when the process could not be started.
func (sc *Scope) Exec(ctx context.Context, timeout time.Duration, name string, args ...string) (*Result, error) {
	res, err := sc.exec(ctx, timeout, sc.isolated, name, args...)
	if err != nil && sc.isolated && errors.Is(err, errIsolationUnavailable) {
		// Unprivileged user namespaces are disabled on this host
		sc.isolated = false
		res, err = sc.exec(ctx, timeout, false, name, args...)
	}
	return res, err
}

func (sc *Scope) exec(ctx context.Context, timeout time.Duration, isolate bool, name string, args ...string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = sc.dir
	cmd.Env = sc.sb.environ(sc.dir)
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdout, limit: sc.sb.opts.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderr, limit: sc.sb.opts.MaxOutputBytes}
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	configureProcess(cmd, isolate)
	cmd.Cancel = func() error { return killGroup(cmd) }
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if isolate && isolationError(err) {
			return nil, errIsolationUnavailable
		}
		return nil, models.NewEnvironmentFault("start sandboxed process", err)
	}
	pid := cmd.Process.Pid
	applyLimits(pid, sc.sb.opts)

	waitErr := reap(cmd)

	res := &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdoutLimited.truncated || stderrLimited.truncated,
		Isolated:  isolate,
		Duration:  time.Since(start),
		PID:       pid,
	}

	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, ctx.Err()
	}
	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else if !errors.Is(waitErr, exec.ErrWaitDelay) {
			res.ExitCode = -1
			return res, models.NewEnvironmentFault("wait for sandboxed process", waitErr)
		}
	}
	return res, nil
}

var errIsolationUnavailable = errors.New("network isolation unavailable")

// environ builds the child environment from an allowlist. HOME and TMPDIR
// point into the scope so caches and config written by the candidate die
// with it.
func (s *Sandbox) environ(dir string) []string {
	env := []string{
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"MPLCONFIGDIR=" + dir,
		"PYTHONHASHSEED=0",
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONUNBUFFERED=1",
		"LANG=C.UTF-8",
	}
	if path := s.opts.Getenv("PATH"); path != "" {
		env = append(env, "PATH="+path)
	} else {
		env = append(env, "PATH=/usr/local/bin:/usr/bin:/bin")
	}
	for _, name := range s.opts.PassEnv {
		if v := s.opts.Getenv(name); v != "" {
			env = append(env, name+"="+v)
		}
	}
	return env
}

// limitedWriter wraps a writer with a size limit.
type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

// Write always reports the whole chunk as consumed so the pipe keeps
// draining past the limit; anything over it is dropped.
func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.limit {
		lw.truncated = true
		return n, nil
	}

	remaining := lw.limit - lw.written
	if len(p) > remaining {
		p = p[:remaining]
		lw.truncated = true
	}

	written, err := lw.w.Write(p)
	lw.written += written
	if err != nil {
		return written, err
	}
	return n, nil
}

// String implements fmt.Stringer for log lines.
func (r *Result) String() string {
	return fmt.Sprintf("exit=%d timed_out=%v duration=%s", r.ExitCode, r.TimedOut, r.Duration.Round(time.Millisecond))
}
