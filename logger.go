package recordfile

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific helpers so that log call
// sites stay consistent across the engine.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPath adds the backing file path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithOffset adds a record offset field to the logger.
func (l *Logger) WithOffset(offset uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("offset", offset),
	}
}

// LogOpen logs the result of opening a store.
func (l *Logger) LogOpen(path string, readOnly bool, err error) {
	if err != nil {
		l.Error("open failed",
			"path", path,
			"read_only", readOnly,
			"error", err,
		)
	} else {
		l.Debug("store opened",
			"path", path,
			"read_only", readOnly,
		)
	}
}

// LogCreate logs a record creation.
func (l *Logger) LogCreate(offset uint64, length int, err error) {
	if err != nil {
		l.Error("create failed",
			"length", length,
			"error", err,
		)
	} else {
		l.Debug("record created",
			"offset", offset,
			"length", length,
		)
	}
}

// LogRemove logs a record removal.
func (l *Logger) LogRemove(offset uint64, err error) {
	if err != nil {
		l.Error("remove failed",
			"offset", offset,
			"error", err,
		)
	} else {
		l.Debug("record removed",
			"offset", offset,
		)
	}
}

// LogUpdate logs a record update, noting whether the record moved.
func (l *Logger) LogUpdate(offset uint64, relocated bool, err error) {
	if err != nil {
		l.Error("update failed",
			"offset", offset,
			"error", err,
		)
	} else {
		l.Debug("record updated",
			"offset", offset,
			"relocated", relocated,
		)
	}
}

// LogFlush logs a flush.
func (l *Logger) LogFlush(err error) {
	if err != nil {
		l.Error("flush failed", "error", err)
	} else {
		l.Debug("flush completed")
	}
}
