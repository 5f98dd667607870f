package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents different logging levels.
type LogLevel int

// Supported log levels.
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogConfig holds configuration for the cache logger.
type LogConfig struct {
	// Level sets the minimum log level.
	Level LogLevel
	// EnableCallerInfo includes file and line number in logs.
	EnableCallerInfo bool
	// JSON switches the handler from text to JSON output.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultLogConfig returns a default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: LogLevelInfo}
}

// Logger provides structured logging for the cache. A nil *Logger is valid
// and discards everything.
type Logger struct {
	impl *slog.Logger
}

// NewLogger creates a slog-backed logger.
func NewLogger(config LogConfig) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.EnableCallerInfo,
	}

	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return &Logger{impl: slog.New(handler)}
}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *Logger {
	return &Logger{impl: slog.New(slog.DiscardHandler)}
}

// FromSlog wraps an existing slog.Logger.
func FromSlog(l *slog.Logger) *Logger {
	if l == nil {
		return NewNopLogger()
	}
	return &Logger{impl: l}
}

// Slog returns the underlying slog.Logger, for handing to lower layers.
func (l *Logger) Slog() *slog.Logger {
	if l == nil || l.impl == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.impl
}

// Debug logs debug-level messages.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.Slog().DebugContext(ctx, msg, args...)
}

// Info logs info-level messages.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.Slog().InfoContext(ctx, msg, args...)
}

// Warn logs warning-level messages.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.Slog().WarnContext(ctx, msg, args...)
}

// Error logs error-level messages.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.Slog().ErrorContext(ctx, msg, args...)
}

// With returns a logger with additional context fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{impl: l.Slog().With(args...)}
}

// WithOperation returns a logger with operation context.
func (l *Logger) WithOperation(op Operation) *Logger {
	return l.With("operation", string(op))
}

// WithRequest returns a logger tagged with a request ID and URL.
func (l *Logger) WithRequest(id, url string) *Logger {
	return l.With("request_id", id, "url", url)
}

// Operation names a cache operation in log output.
type Operation string

// Operation constants.
const (
	OpGetURL     Operation = "get_url"
	OpLookup     Operation = "lookup"
	OpFetch      Operation = "fetch"
	OpStore      Operation = "store"
	OpEvict      Operation = "evict"
	OpInvalidate Operation = "invalidate"
	OpClear      Operation = "clear"
)

// LogCacheHit logs a cache hit event.
func LogCacheHit(ctx context.Context, logger *Logger, size int) {
	logger.Debug(ctx, "cache hit", "size", size, "result", "hit")
}

// LogCacheMiss logs a cache miss event.
func LogCacheMiss(ctx context.Context, logger *Logger, reason string) {
	logger.Debug(ctx, "cache miss", "reason", reason, "result", "miss")
}

// LogStoreAbandoned logs a write that was given up on. The caller still
// receives the fetched value.
func LogStoreAbandoned(ctx context.Context, logger *Logger, size int, err error) {
	logger.Warn(ctx, "cache write abandoned", "size", size, "error", err)
}

// LogPerformanceMetrics logs a metrics snapshot.
func LogPerformanceMetrics(ctx context.Context, logger *Logger, m MetricsSnapshot) {
	logger.Info(ctx, "cache performance metrics",
		"hit_rate", fmt.Sprintf("%.2f", m.HitRate),
		"hits", m.Hits,
		"misses", m.Misses,
		"fetch_errors", m.FetchErrors,
		"evictions", m.Evictions,
		"store_failures", m.StoreFailures,
		"decode_failures", m.DecodeFailures,
		"bytes_stored", m.BytesStored,
		"bandwidth_saved", m.BandwidthSaved,
		"uptime", m.Uptime.String(),
	)
}

// ParseLogLevel parses a string log level into a LogLevel.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}
