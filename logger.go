package netimp

import "github.com/apex/log"

// Logger is the logging interface used throughout this package. It is
// satisfied by [*log.Logger] from github.com/apex/log, which is what
// [NewApexLogger] returns.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}

// apexLoggerAdapter adapts *log.Logger (github.com/apex/log) to [Logger].
type apexLoggerAdapter struct {
	entry *log.Logger
}

// NewApexLogger returns a [Logger] backed by github.com/apex/log using the
// given handler (e.g. cli.Default from github.com/apex/log/handlers/cli).
// A nil handler uses the
// package-level default apex/log handler.
func NewApexLogger(handler log.Handler) Logger {
	l := &log.Logger{Handler: handler, Level: log.InfoLevel}
	if handler == nil {
		l = log.Log.(*log.Logger)
	}
	return &apexLoggerAdapter{entry: l}
}

func (a *apexLoggerAdapter) Debugf(format string, v ...any) { a.entry.Debugf(format, v...) }
func (a *apexLoggerAdapter) Debug(message string)            { a.entry.Debug(message) }
func (a *apexLoggerAdapter) Infof(format string, v ...any)   { a.entry.Infof(format, v...) }
func (a *apexLoggerAdapter) Info(message string)             { a.entry.Info(message) }
func (a *apexLoggerAdapter) Warnf(format string, v ...any)   { a.entry.Warnf(format, v...) }
func (a *apexLoggerAdapter) Warn(message string)             { a.entry.Warn(message) }

var _ Logger = &apexLoggerAdapter{}

// discardLogger is a [Logger] that drops everything, used when the
// caller does not provide one. Grounded on the teacher's own
// internal.NullLogger.
type discardLogger struct{}

func (discardLogger) Debugf(format string, v ...any) {}
func (discardLogger) Debug(message string)            {}
func (discardLogger) Infof(format string, v ...any)   {}
func (discardLogger) Info(message string)             {}
func (discardLogger) Warnf(format string, v ...any)   {}
func (discardLogger) Warn(message string)             {}

var _ Logger = discardLogger{}

// nonNilLogger returns logger if non-nil, otherwise a [discardLogger].
func nonNilLogger(logger Logger) Logger {
	if logger == nil {
		return discardLogger{}
	}
	return logger
}
