package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the minimal logging interface for the control room.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NewSlogLogger builds a Logger writing structured records to stdout.
// Format is "json" or "text"; json is the default.
func NewSlogLogger(level LogLevel, format string) Logger {
	return NewSlogLoggerTo(os.Stdout, level, format)
}

// NewSlogLoggerTo builds a Logger writing structured records to w.
func NewSlogLoggerTo(w io.Writer, level LogLevel, format string) Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ControlRoomLogger wraps a Logger adding contextual cloning helpers and
// domain convenience methods. It is cheap to copy via the With* methods.
type ControlRoomLogger struct {
	logger    Logger
	component string
	sessionID string
	context   map[string]any
}

// NewControlRoomLogger wraps an existing Logger. A nil logger falls back to NoOpLogger.
func NewControlRoomLogger(logger Logger) *ControlRoomLogger {
	if logger == nil {
		logger = NoOpLogger{}
	}
	return &ControlRoomLogger{logger: logger, context: map[string]any{}}
}

func (l *ControlRoomLogger) clone() *ControlRoomLogger {
	nl := *l
	nl.context = make(map[string]any, len(l.context))
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithComponent sets the logical component (registry, routing, mcp, transport).
func (l *ControlRoomLogger) WithComponent(c string) *ControlRoomLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithSession attaches a session identifier to every subsequent log entry.
func (l *ControlRoomLogger) WithSession(sid string) *ControlRoomLogger {
	nl := l.clone()
	nl.sessionID = sid
	return nl
}

// WithContext adds a key/value attribute attached to every log entry.
func (l *ControlRoomLogger) WithContext(key string, value any) *ControlRoomLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

func (l *ControlRoomLogger) attrs(args []any) []any {
	out := make([]any, 0, len(args)+6+len(l.context)*2)
	out = append(out, args...)
	if l.component != "" {
		out = append(out, "component", l.component)
	}
	if l.sessionID != "" {
		out = append(out, "session_id", l.sessionID)
	}
	for k, v := range l.context {
		out = append(out, k, v)
	}
	return out
}

// Debug logs at debug level.
func (l *ControlRoomLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, l.attrs(args)...) }

// Info logs at info level.
func (l *ControlRoomLogger) Info(msg string, args ...any) { l.logger.Info(msg, l.attrs(args)...) }

// Warn logs at warn level.
func (l *ControlRoomLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, l.attrs(args)...) }

// Error logs at error level.
func (l *ControlRoomLogger) Error(msg string, args ...any) { l.logger.Error(msg, l.attrs(args)...) }

// LogBackendCall records latency, token usage and success of one backend call.
func (l *ControlRoomLogger) LogBackendCall(backendID string, tokens int, dur time.Duration, err error) {
	args := []any{"backend_id", backendID, "token_count", tokens, "duration", dur, "success", err == nil}
	if err != nil {
		args = append(args, "error", err.Error())
		l.Error("Backend call failed", args...)
		return
	}
	l.Info("Backend call completed", args...)
}

// LogToolCall records execution details for a tool server invocation.
func (l *ControlRoomLogger) LogToolCall(server, tool string, dur time.Duration, err error) {
	args := []any{"server", server, "tool_name", tool, "duration", dur, "success", err == nil}
	if err != nil {
		args = append(args, "error", err.Error())
		l.Error("Tool call failed", args...)
		return
	}
	l.Info("Tool call completed", args...)
}

// LogRoute records aggregate metrics for one routed turn.
func (l *ControlRoomLogger) LogRoute(strategy string, backends, replies int, dur time.Duration) {
	l.Info("Turn routed", "strategy", strategy, "backend_count", backends, "reply_count", replies, "duration", dur)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
