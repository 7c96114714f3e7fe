// Package logging provides structured JSON logging for the beacon service.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with additional context fields.
type Logger struct {
	*slog.Logger
}

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	collectionKey  contextKey = "collection"
	endpointKey    contextKey = "endpoint"
	requestTimeKey contextKey = "request_time"
)

// RequestInfo contains contextual information about the request.
type RequestInfo struct {
	RequestID     string
	Collection    string
	Endpoint      string
	Mode          string
	ServerTotalMs float64
	QueryExecMs   float64
}

// New creates a new Logger with JSON output.
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a new Logger with JSON output to the provided writer.
func NewWithWriter(w io.Writer) *Logger {
	return NewWithLevel(w, slog.LevelInfo)
}

// NewWithLevel creates a JSON logger writing records at or above level.
func NewWithLevel(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return NewWithWriter(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns a logger with context values attached.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		logger = logger.With(slog.String("request_id", requestID))
	}
	if collection, ok := ctx.Value(collectionKey).(string); ok && collection != "" {
		logger = logger.With(slog.String("collection", collection))
	}
	if endpoint, ok := ctx.Value(endpointKey).(string); ok && endpoint != "" {
		logger = logger.With(slog.String("endpoint", endpoint))
	}

	return &Logger{Logger: logger}
}

// WithRequestInfo returns a logger with request information attached.
func (l *Logger) WithRequestInfo(info *RequestInfo) *Logger {
	logger := l.Logger

	if info.RequestID != "" {
		logger = logger.With(slog.String("request_id", info.RequestID))
	}
	if info.Collection != "" {
		logger = logger.With(slog.String("collection", info.Collection))
	}
	if info.Endpoint != "" {
		logger = logger.With(slog.String("endpoint", info.Endpoint))
	}
	if info.Mode != "" {
		logger = logger.With(slog.String("mode", info.Mode))
	}
	if info.ServerTotalMs > 0 {
		logger = logger.With(slog.Float64("server_total_ms", info.ServerTotalMs))
	}
	if info.QueryExecMs > 0 {
		logger = logger.With(slog.Float64("query_execution_ms", info.QueryExecMs))
	}

	return &Logger{Logger: logger}
}

// With returns a new logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithCollection adds the target collection to the context.
func ContextWithCollection(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, collectionKey, collection)
}

// ContextWithEndpoint adds an endpoint to the context.
func ContextWithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey, endpoint)
}

// ContextWithRequestTime adds a request start time to the context.
func ContextWithRequestTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// CollectionFromContext extracts the collection from the context.
func CollectionFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(collectionKey).(string); ok {
		return c
	}
	return ""
}

// EndpointFromContext extracts the endpoint from the context.
func EndpointFromContext(ctx context.Context) string {
	if ep, ok := ctx.Value(endpointKey).(string); ok {
		return ep
	}
	return ""
}

// RequestTimeFromContext extracts the request start time from the context.
func RequestTimeFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// ElapsedMs returns the milliseconds elapsed since the request time.
func ElapsedMs(ctx context.Context) float64 {
	start := RequestTimeFromContext(ctx)
	if start.IsZero() {
		return 0
	}
	return float64(time.Since(start).Microseconds()) / 1000.0
}
