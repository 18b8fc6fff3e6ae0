// Package logging configures the diagnostic logger. Diagnostics always go
// to stderr (or the configured writer), never to the record output.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, logrus.InfoLevel)
)

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   true,
	})
	return l
}

// Setup replaces the package logger. verbose enables debug output; quiet
// limits output to errors and wins over verbose.
func Setup(w io.Writer, verbose, quiet bool) *logrus.Logger {
	level := logrus.InfoLevel
	switch {
	case quiet:
		level = logrus.ErrorLevel
	case verbose:
		level = logrus.DebugLevel
	}

	l := newLogger(w, level)

	mu.Lock()
	logger = l
	mu.Unlock()

	return l
}

// GetLogger returns the configured logger.
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// WithComponent creates a logger entry tagged with the emitting component.
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

// WithFile creates a logger entry for work on one input file.
func WithFile(path string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"component": "pipeline",
		"file":      path,
	})
}

// WithError creates a logger entry carrying err.
func WithError(err error, component string) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"component": component,
		"error":     err.Error(),
	})
}
