// Package logging is a thin leveled wrapper over the standard logger.
// It exists so logic structs can embed a Logger value and so tests can
// silence output without plumbing a logger through every constructor.
package logging

import (
	"context"
	"log"
	"os"
)

var (
	disabled = false
	logger   = log.New(os.Stdout, "", log.LstdFlags)
)

// Disable turns off all logging (used by tests and quiet CLI output).
func Disable() {
	disabled = true
}

// Enable turns logging back on.
func Enable() {
	disabled = false
}

// Infof logs a formatted info message.
func Infof(format string, v ...any) {
	if !disabled {
		logger.Printf("INFO "+format, v...)
	}
}

// Info logs an info message.
func Info(v ...any) {
	if !disabled {
		logger.Println(append([]any{"INFO"}, v...)...)
	}
}

// Warnf logs a formatted warning message.
func Warnf(format string, v ...any) {
	if !disabled {
		logger.Printf("WARN "+format, v...)
	}
}

// Errorf logs a formatted error message.
func Errorf(format string, v ...any) {
	if !disabled {
		logger.Printf("ERROR "+format, v...)
	}
}

// Error logs an error message.
func Error(v ...any) {
	if !disabled {
		logger.Println(append([]any{"ERROR"}, v...)...)
	}
}

// Logger is an embeddable logger value for logic structs.
type Logger struct{}

// WithContext creates a Logger. The context is currently unused but kept
// so call sites don't change if request-scoped fields are added later.
func WithContext(ctx context.Context) Logger {
	return Logger{}
}

func (l Logger) Infof(format string, v ...any)  { Infof(format, v...) }
func (l Logger) Warnf(format string, v ...any)  { Warnf(format, v...) }
func (l Logger) Errorf(format string, v ...any) { Errorf(format, v...) }
