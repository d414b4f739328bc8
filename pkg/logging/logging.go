package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// idPrefixLength is how many characters of a user or session identifier are
// kept when it is written to a log line.
const idPrefixLength = 8

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name (case-sensitive, as printed by String) to a LogLevel.
// Unknown names fall back to LevelInfo.
func ParseLevel(name string) LogLevel {
	switch name {
	case "DEBUG", "debug":
		return LevelDebug
	case "WARN", "warn":
		return LevelWarn
	case "ERROR", "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// Init initializes the package logger writing text records to output.
// This should be called once at application startup; tests may call it again
// to capture output.
func Init(level LogLevel, output io.Writer) {
	opts := &slog.HandlerOptions{
		Level: level.SlogLevel(),
	}
	logger := slog.New(slog.NewTextHandler(output, opts))

	mu.Lock()
	defaultLogger = logger
	mu.Unlock()

	slog.SetDefault(logger)
}

// Logger returns the underlying slog logger, initializing a stderr logger at
// INFO level if Init has not been called yet.
func Logger() *slog.Logger {
	mu.RLock()
	logger := defaultLogger
	mu.RUnlock()
	if logger != nil {
		return logger
	}
	Init(LevelInfo, os.Stderr)
	return Logger()
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	logger := Logger()
	if !logger.Enabled(context.Background(), level.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	logger.LogAttrs(context.Background(), level.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// TruncateID shortens a user or session identifier for log output so full
// identifiers never end up in log aggregation systems.
func TruncateID(id string) string {
	if len(id) <= idPrefixLength {
		return id
	}
	return id[:idPrefixLength] + "..."
}

// AuditEvent describes a security-relevant operation.
type AuditEvent struct {
	// Action is what happened, e.g. "login", "token_exchange", "credential_refresh".
	Action string
	// Outcome is "success" or "failure".
	Outcome string
	// UserID should already be truncated with TruncateID.
	UserID string
	// Detail is an optional human-readable reason.
	Detail string
}

// Audit logs a security audit event at INFO level with an [AUDIT] prefix.
func Audit(event AuditEvent) {
	logger := Logger()
	attrs := []slog.Attr{
		slog.String("subsystem", "Audit"),
		slog.String("action", event.Action),
		slog.String("outcome", event.Outcome),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user", event.UserID))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, "[AUDIT] "+event.Action, attrs...)
}
