package dtlsengine

import (
	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

// logrusLeveledLogger adapts a *logrus.Entry to pion/logging's
// LeveledLogger interface, required by dtls.Config.LoggerFactory. This is
// the logging seam: pion/dtls's internal handshake tracing flows through
// the same logrus pipeline as the rest of the client instead of pion's
// own default stdout logger.
type logrusLeveledLogger struct {
	entry *logrus.Entry
}

func (l logrusLeveledLogger) Trace(msg string)                          { l.entry.Trace(msg) }
func (l logrusLeveledLogger) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }
func (l logrusLeveledLogger) Debug(msg string)                          { l.entry.Debug(msg) }
func (l logrusLeveledLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l logrusLeveledLogger) Info(msg string)                           { l.entry.Info(msg) }
func (l logrusLeveledLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l logrusLeveledLogger) Warn(msg string)                           { l.entry.Warn(msg) }
func (l logrusLeveledLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l logrusLeveledLogger) Error(msg string)                          { l.entry.Error(msg) }
func (l logrusLeveledLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// loggerFactory implements logging.LoggerFactory over a single
// *logrus.Entry, tagging each pion/dtls internal scope (e.g. "handshaker",
// "conn") onto the entry's "scope" field rather than routing to separate
// loggers.
type loggerFactory struct {
	entry *logrus.Entry
}

// NewLoggerFactory builds a pion/logging.LoggerFactory backed by entry.
func NewLoggerFactory(entry *logrus.Entry) logging.LoggerFactory {
	return loggerFactory{entry: entry}
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return logrusLeveledLogger{entry: f.entry.WithField("scope", scope)}
}
