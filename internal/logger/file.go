package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Manik0107/VATA/internal/filelock"
	"github.com/Manik0107/VATA/internal/models"
)

// Rotation settings for vata.log.
const (
	logFileName   = "vata.log"
	maxLogSizeMB  = 10
	maxLogBackups = 5
	maxLogAgeDays = 28
)

// FileLogger writes plain log lines to <logDir>/vata.log, rotated by
// lumberjack. Loggers returned by ForRun additionally keep a transcript of
// their run, saved to <logDir>/runs/<run-id>.log when the run finishes;
// runs/latest.log points at the most recent transcript.
type FileLogger struct {
	logDir   string
	runsDir  string
	out      io.WriteCloser
	logLevel string
	mu       *sync.Mutex

	// transcript is nil on the shared logger.
	transcript *bytes.Buffer
	owner      bool
}

// NewFileLogger creates the log directory and opens the rotating log file.
func NewFileLogger(logDir, logLevel string) (*FileLogger, error) {
	runsDir := filepath.Join(logDir, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	fl := &FileLogger{
		logDir:  logDir,
		runsDir: runsDir,
		out: &lumberjack.Logger{
			Filename:   filepath.Join(logDir, logFileName),
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			MaxAge:     maxLogAgeDays,
		},
		logLevel: normalizeLogLevel(logLevel),
		mu:       &sync.Mutex{},
		owner:    true,
	}
	fl.writeRaw(fmt.Sprintf("=== VATA log opened %s ===\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// LogDir returns the directory holding vata.log and runs/.
func (fl *FileLogger) LogDir() string {
	return fl.logDir
}

// ForRun returns a logger that writes to the same file and also records a
// transcript for one run.
func (fl *FileLogger) ForRun() *FileLogger {
	return &FileLogger{
		logDir:     fl.logDir,
		runsDir:    fl.runsDir,
		out:        fl.out,
		logLevel:   fl.logLevel,
		mu:         fl.mu,
		transcript: &bytes.Buffer{},
	}
}

// SaveTranscript writes the buffered transcript to runs/<runID>.log,
// points runs/latest.log at it and resets the buffer. It is a no-op on the
// shared logger.
func (fl *FileLogger) SaveTranscript(runID string) (string, error) {
	if fl.transcript == nil {
		return "", nil
	}
	if runID == "" {
		return "", fmt.Errorf("transcript needs a run id")
	}

	fl.mu.Lock()
	data := append([]byte(nil), fl.transcript.Bytes()...)
	fl.transcript.Reset()
	fl.mu.Unlock()

	name := runID + ".log"
	path := filepath.Join(fl.runsDir, name)
	if err := filelock.LockAndWrite(path, data); err != nil {
		return "", fmt.Errorf("failed to write run transcript: %w", err)
	}

	latest := filepath.Join(fl.runsDir, "latest.log")
	if _, err := os.Lstat(latest); err == nil {
		if err := os.Remove(latest); err != nil {
			return path, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(name, latest); err != nil {
		return path, fmt.Errorf("failed to create symlink: %w", err)
	}
	return path, nil
}

// Close closes the log file. Loggers from ForRun leave it open.
func (fl *FileLogger) Close() error {
	if !fl.owner {
		return nil
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.out.Close()
}

// Tracef logs a trace-level message.
func (fl *FileLogger) Tracef(format string, args ...interface{}) {
	fl.write(entry{level: "trace", msg: fmt.Sprintf(format, args...)})
}

// Debugf logs a debug-level message.
func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.write(entry{level: "debug", msg: fmt.Sprintf(format, args...)})
}

// Infof logs an info-level message.
func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.write(entry{level: "info", msg: fmt.Sprintf(format, args...)})
}

// Warnf logs a warning-level message.
func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.write(entry{level: "warn", msg: fmt.Sprintf(format, args...)})
}

// Errorf logs an error-level message.
func (fl *FileLogger) Errorf(format string, args ...interface{}) {
	fl.write(entry{level: "error", msg: fmt.Sprintf(format, args...)})
}

func (fl *FileLogger) LogStrategyStart(index int, strategy models.StrategyID) {
	fl.write(strategyStartEntries(index, strategy)...)
}

func (fl *FileLogger) LogVerdict(c *models.CodeCandidate, verdict models.ValidationVerdict) {
	fl.write(verdictEntries(c, verdict)...)
}

func (fl *FileLogger) LogRepair(attempt models.RepairAttempt) {
	fl.write(repairEntries(attempt)...)
}

func (fl *FileLogger) LogTransition(from, to string) {
	fl.write(transitionEntries(from, to)...)
}

// LogOutcome writes the run summary and, on a run logger, saves the
// transcript.
func (fl *FileLogger) LogOutcome(report *models.ProvenanceReport) {
	fl.write(outcomeEntries(report)...)
	if report == nil || fl.transcript == nil {
		return
	}
	if _, err := fl.SaveTranscript(report.RunID); err != nil {
		fl.write(entry{level: "warn", msg: err.Error()})
	}
}

func (fl *FileLogger) LogRateLimitCountdown(remaining, total time.Duration) {
	fl.write(rateLimitEntries(remaining, total)...)
}

func (fl *FileLogger) write(entries ...entry) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	var b strings.Builder
	for _, e := range entries {
		if !enabled(fl.logLevel, e.level) {
			continue
		}
		fmt.Fprintf(&b, "[%s] [%s] %s\n", ts, strings.ToUpper(e.level), e.msg)
	}
	if b.Len() > 0 {
		fl.writeRaw(b.String())
	}
}

// writeRaw writes to the log file and the transcript under the shared lock.
// Write errors are dropped: logging never fails a run.
func (fl *FileLogger) writeRaw(s string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	io.WriteString(fl.out, s)
	if fl.transcript != nil {
		fl.transcript.WriteString(s)
	}
}
