// Package core holds the ambient services every forwarding component
// depends on: structured logging, configuration, and a debug trace bus.
package core

import (
	"fmt"
	"log/slog"
	"os"

	stdlog "github.com/named-data/ndnd-ncc/std/log"
)

// Logger is a small structured logger keyed by a "subject" - almost always
// the component (strategy, module) emitting the record - matching every
// call site already present in the forwarding strategies and management
// modules: Log.Trace(s, "msg", "k", v, ...).
type Logger struct {
	level   stdlog.Level
	handler *slog.Logger
}

// Log is the process-wide logger. Strategies, tables, and management
// modules all log through it rather than carrying their own handle.
var Log = NewLogger(stdlog.LevelInfo)

// NewLogger constructs a Logger at the given minimum level, writing to
// stderr in slog's text format.
func NewLogger(level stdlog.Level) *Logger {
	return &Logger{
		level:   level,
		handler: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

// SetLevel changes the minimum level records are emitted at.
func (l *Logger) SetLevel(level stdlog.Level) {
	l.level = level
}

func (l *Logger) log(level stdlog.Level, subject fmt.Stringer, msg string, kv []any) {
	if level < l.level {
		return
	}
	args := make([]any, 0, len(kv)+2)
	args = append(args, "module", subject.String())
	args = append(args, kv...)
	switch {
	case level <= stdlog.LevelTrace:
		l.handler.Debug(msg, args...)
	case level <= stdlog.LevelDebug:
		l.handler.Debug(msg, args...)
	case level <= stdlog.LevelInfo:
		l.handler.Info(msg, args...)
	case level <= stdlog.LevelWarn:
		l.handler.Warn(msg, args...)
	default:
		l.handler.Error(msg, args...)
	}
}

// Trace logs a very verbose, per-packet record.
func (l *Logger) Trace(subject fmt.Stringer, msg string, kv ...any) {
	l.log(stdlog.LevelTrace, subject, msg, kv)
}

// Debug logs a developer-facing diagnostic record.
func (l *Logger) Debug(subject fmt.Stringer, msg string, kv ...any) {
	l.log(stdlog.LevelDebug, subject, msg, kv)
}

// Info logs a normal operational record.
func (l *Logger) Info(subject fmt.Stringer, msg string, kv ...any) {
	l.log(stdlog.LevelInfo, subject, msg, kv)
}

// Warn logs a record about a recoverable but noteworthy condition.
func (l *Logger) Warn(subject fmt.Stringer, msg string, kv ...any) {
	l.log(stdlog.LevelWarn, subject, msg, kv)
}

// Error logs a record about a failed operation.
func (l *Logger) Error(subject fmt.Stringer, msg string, kv ...any) {
	l.log(stdlog.LevelError, subject, msg, kv)
}

// Fatal logs at error level and terminates the process, mirroring the
// teacher's use of core.Log.Fatal to abort on unrecoverable setup errors
// (e.g. a profile file that cannot be created).
func (l *Logger) Fatal(subject fmt.Stringer, msg string, kv ...any) {
	l.log(stdlog.LevelFatal, subject, msg, kv)
	os.Exit(1)
}
