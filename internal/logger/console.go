package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/Manik0107/VATA/internal/models"
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps for tracking execution flow.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	prefix      string
	mutex       *sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		mutex:       &sync.Mutex{},
		colorOutput: isTerminal(writer),
	}
}

// WithPrefix returns a logger sharing this logger's writer and lock that
// tags every line with [prefix]. Concurrent runs use it to keep their
// output apart.
func (cl *ConsoleLogger) WithPrefix(prefix string) *ConsoleLogger {
	clone := *cl
	clone.prefix = prefix
	return &clone
}

// isTerminal checks if the writer is a terminal that supports colors.
// Honours NO_COLOR through fatih/color.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false
	}
	return !color.NoColor
}

// Tracef logs a trace-level message (most verbose).
func (cl *ConsoleLogger) Tracef(format string, args ...interface{}) {
	cl.write(entry{level: "trace", msg: fmt.Sprintf(format, args...)})
}

// Debugf logs a debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.write(entry{level: "debug", msg: fmt.Sprintf(format, args...)})
}

// Infof logs an info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.write(entry{level: "info", msg: fmt.Sprintf(format, args...)})
}

// Warnf logs a warning-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.write(entry{level: "warn", msg: fmt.Sprintf(format, args...)})
}

// Errorf logs an error-level message.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.write(entry{level: "error", msg: fmt.Sprintf(format, args...)})
}

// LogStrategyStart logs the start of a generation strategy at INFO level.
// Format: "[HH:MM:SS] [INFO] Trying strategy 1: full-generation"
func (cl *ConsoleLogger) LogStrategyStart(index int, strategy models.StrategyID) {
	cl.write(strategyStartEntries(index, strategy)...)
}

// LogVerdict logs a validation verdict. Passing verdicts are INFO, failing
// ones WARN with each logic violation at DEBUG.
func (cl *ConsoleLogger) LogVerdict(c *models.CodeCandidate, verdict models.ValidationVerdict) {
	cl.write(verdictEntries(c, verdict)...)
}

// LogRepair logs one repair call.
func (cl *ConsoleLogger) LogRepair(attempt models.RepairAttempt) {
	cl.write(repairEntries(attempt)...)
}

// LogTransition logs a state machine transition at DEBUG level.
func (cl *ConsoleLogger) LogTransition(from, to string) {
	cl.write(transitionEntries(from, to)...)
}

// LogOutcome logs the run summary at INFO level, with per-strategy lines
// at DEBUG.
func (cl *ConsoleLogger) LogOutcome(report *models.ProvenanceReport) {
	cl.write(outcomeEntries(report)...)
}

// LogRateLimitCountdown logs a model rate-limit wait.
func (cl *ConsoleLogger) LogRateLimitCountdown(remaining, total time.Duration) {
	cl.write(rateLimitEntries(remaining, total)...)
}

// write renders the entries that pass the level filter as one block so
// concurrent runs never interleave within an event.
func (cl *ConsoleLogger) write(entries ...entry) {
	if cl.writer == nil {
		return
	}
	ts := timestamp()
	var b strings.Builder
	for _, e := range entries {
		if !enabled(cl.logLevel, e.level) {
			continue
		}
		b.WriteString(cl.formatLine(ts, e))
	}
	if b.Len() == 0 {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	io.WriteString(cl.writer, b.String())
}

func (cl *ConsoleLogger) formatLine(ts string, e entry) string {
	level := strings.ToUpper(e.level)
	msg := e.msg
	if cl.prefix != "" {
		msg = "[" + cl.prefix + "] " + msg
	}
	if !cl.colorOutput {
		return fmt.Sprintf("[%s] [%s] %s\n", ts, level, msg)
	}
	if e.accent != nil {
		msg = e.accent.Sprint(msg)
	}
	return fmt.Sprintf("[%s] [%s] %s\n", ts, levelColor(e.level).Sprint(level), msg)
}

func levelColor(level string) *color.Color {
	switch level {
	case "trace":
		return color.New(color.FgHiBlack)
	case "debug":
		return color.New(color.FgCyan)
	case "warn":
		return color.New(color.FgYellow)
	case "error":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}
