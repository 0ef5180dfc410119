// Package log implements simple logging functionality with a focus on debug level logging. By default, logging is
// disabled and the underlying logger is a no-op implementation. Use the SetLogger helper function to enable debug
// logging.
//
// The refresher and exposure wipers log from their own goroutines, so the logger may be swapped while they run.
package log

import "sync/atomic"

type Interface interface {
	// Debugf v using a format string.
	Debugf(format string, v ...interface{})
}

type holder struct {
	l Interface
}

var logger atomic.Value

func init() {
	logger.Store(holder{l: noopLogger{}})
}

func current() Interface {
	return logger.Load().(holder).l
}

// SetLogger sets the logger used by the maskedmemory packages and enables debug level logging.
func SetLogger(l Interface) {
	logger.Store(holder{l: l})
}

// Debugf writes to the log using the configured logger.
func Debugf(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Debugf(format, v...)
	}
}

// DebugEnabled returns true if a logger has been supplied via SetLogger.
func DebugEnabled() bool {
	switch current().(type) {
	case noopLogger, nil:
		return false
	default:
		return true
	}
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, v ...interface{}) {
	// do nothing
}
