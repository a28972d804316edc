package logger

import (
	"fmt"
	"time"

	"github.com/Manik0107/VATA/internal/models"
)

// MultiLogger fans every call out to a list of loggers in order.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) Tracef(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	for _, l := range m.loggers {
		l.Tracef("%s", msg)
	}
}

func (m *MultiLogger) Debugf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	for _, l := range m.loggers {
		l.Debugf("%s", msg)
	}
}

func (m *MultiLogger) Infof(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	for _, l := range m.loggers {
		l.Infof("%s", msg)
	}
}

func (m *MultiLogger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	for _, l := range m.loggers {
		l.Warnf("%s", msg)
	}
}

func (m *MultiLogger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	for _, l := range m.loggers {
		l.Errorf("%s", msg)
	}
}

func (m *MultiLogger) LogStrategyStart(index int, strategy models.StrategyID) {
	for _, l := range m.loggers {
		l.LogStrategyStart(index, strategy)
	}
}

func (m *MultiLogger) LogVerdict(c *models.CodeCandidate, verdict models.ValidationVerdict) {
	for _, l := range m.loggers {
		l.LogVerdict(c, verdict)
	}
}

func (m *MultiLogger) LogRepair(attempt models.RepairAttempt) {
	for _, l := range m.loggers {
		l.LogRepair(attempt)
	}
}

func (m *MultiLogger) LogTransition(from, to string) {
	for _, l := range m.loggers {
		l.LogTransition(from, to)
	}
}

func (m *MultiLogger) LogOutcome(report *models.ProvenanceReport) {
	for _, l := range m.loggers {
		l.LogOutcome(report)
	}
}

func (m *MultiLogger) LogRateLimitCountdown(remaining, total time.Duration) {
	for _, l := range m.loggers {
		l.LogRateLimitCountdown(remaining, total)
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (*NoOpLogger) Tracef(string, ...interface{})                              {}
func (*NoOpLogger) Debugf(string, ...interface{})                              {}
func (*NoOpLogger) Infof(string, ...interface{})                               {}
func (*NoOpLogger) Warnf(string, ...interface{})                               {}
func (*NoOpLogger) Errorf(string, ...interface{})                              {}
func (*NoOpLogger) LogStrategyStart(int, models.StrategyID)                   {}
func (*NoOpLogger) LogVerdict(*models.CodeCandidate, models.ValidationVerdict) {}
func (*NoOpLogger) LogRepair(models.RepairAttempt)                            {}
func (*NoOpLogger) LogTransition(string, string)                              {}
func (*NoOpLogger) LogOutcome(*models.ProvenanceReport)                       {}
func (*NoOpLogger) LogRateLimitCountdown(time.Duration, time.Duration)        {}

var (
	_ Logger = (*ConsoleLogger)(nil)
	_ Logger = (*FileLogger)(nil)
	_ Logger = (*MultiLogger)(nil)
	_ Logger = (*NoOpLogger)(nil)
)
