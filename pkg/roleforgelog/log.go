// Package roleforgelog provides the process-wide structured logger used by
// the logging components (RoleGraph, Orchestrator, agentcore.Agent).
// Those components accept a *zap.Logger and fall back to this
// package's default when none is supplied, rather than calling these
// package-level functions directly.
package roleforgelog

import (
	"go.uber.org/zap"
)

var logger *zap.Logger

func init() {
	logger, _ = zap.NewDevelopment()
}

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	return logger
}

// SetLogger replaces the process-wide logger, e.g. with a production
// config in cmd/roleforge.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// Named returns a child logger scoped to the given component name,
// falling back to the process-wide logger when l is nil.
func Named(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = logger
	}
	return l.Named(name)
}

// Debug logs a debug message on the process-wide logger.
func Debug(msg string, fields ...zap.Field) { logger.Debug(msg, fields...) }

// Info logs an info message on the process-wide logger.
func Info(msg string, fields ...zap.Field) { logger.Info(msg, fields...) }

// Warn logs a warning message on the process-wide logger.
func Warn(msg string, fields ...zap.Field) { logger.Warn(msg, fields...) }

// Error logs an error message on the process-wide logger.
func Error(msg string, fields ...zap.Field) { logger.Error(msg, fields...) }

// Sync flushes any buffered log entries.
func Sync() error { return logger.Sync() }
