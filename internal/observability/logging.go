// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger for background components (repositories, jobs,
// the websocket hub) that run outside a request.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	GlobalLogger = &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(os.Getenv("LOG_LEVEL")),
	}))}
}

func levelFromEnv(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
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

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID ties together the log lines of one job run.
const CorrelationID LogContextKey = "correlation_id"

// LoggingConfig switches the chatty per-row loggers on and off.
type LoggingConfig struct {
	EnableRepoLogging bool
	EnableWSLogging   bool
}

// Config holds the current logging configuration.
var Config = LoggingConfig{
	EnableRepoLogging: true,
	EnableWSLogging:   true,
}

// WithCorrelationID returns ctx carrying a new correlation ID.
func WithCorrelationID(ctx context.Context) context.Context {
	return context.WithValue(ctx, CorrelationID, uuid.NewString())
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

func withCorrelation(ctx context.Context, attrs []any) []any {
	if id := ExtractCorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	return attrs
}

// RepoLogger logs writes to one table.
type RepoLogger struct {
	table string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

func (l *RepoLogger) write(ctx context.Context, level slog.Level, msg, op string, attrs []slog.Attr) {
	if !Config.EnableRepoLogging {
		return
	}
	args := withCorrelation(ctx, []any{slog.String("table", l.table), slog.String("operation", op)})
	for _, a := range attrs {
		args = append(args, a)
	}
	GlobalLogger.Log(ctx, level, msg, args...)
}

func (l *RepoLogger) LogCreate(ctx context.Context, attrs ...slog.Attr) {
	l.write(ctx, slog.LevelInfo, "row created", "create", attrs)
}

func (l *RepoLogger) LogUpdate(ctx context.Context, attrs ...slog.Attr) {
	l.write(ctx, slog.LevelInfo, "row updated", "update", attrs)
}

func (l *RepoLogger) LogDelete(ctx context.Context, attrs ...slog.Attr) {
	l.write(ctx, slog.LevelInfo, "row deleted", "delete", attrs)
}

// LogError logs a failed repository operation.
func (l *RepoLogger) LogError(ctx context.Context, err error, op string) {
	l.write(ctx, slog.LevelError, "repository error", op, []slog.Attr{slog.String("error", err.Error())})
}

// WSLogger logs websocket lifecycle events for one hub.
type WSLogger struct {
	hub string
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hub string) *WSLogger {
	return &WSLogger{hub: hub}
}

func (l *WSLogger) write(ctx context.Context, level slog.Level, msg string, userID uuid.UUID, attrs ...any) {
	if !Config.EnableWSLogging {
		return
	}
	args := append([]any{slog.String("hub", l.hub), slog.String("user_id", userID.String())}, attrs...)
	GlobalLogger.Log(ctx, level, msg, args...)
}

func (l *WSLogger) LogConnect(ctx context.Context, userID uuid.UUID, connections int) {
	l.write(ctx, slog.LevelInfo, "websocket connected", userID, slog.Int("user_connections", connections))
}

func (l *WSLogger) LogDisconnect(ctx context.Context, userID uuid.UUID, reason string) {
	l.write(ctx, slog.LevelInfo, "websocket disconnected", userID, slog.String("reason", reason))
}

func (l *WSLogger) LogError(ctx context.Context, userID uuid.UUID, err error, eventType string) {
	l.write(ctx, slog.LevelError, "websocket error", userID,
		slog.String("event_type", eventType), slog.String("error", err.Error()))
}

// LogJobStart marks the beginning of a background job run.
func LogJobStart(ctx context.Context, job string) {
	GlobalLogger.InfoContext(ctx, "job started", withCorrelation(ctx, []any{slog.String("job", job)})...)
}

// LogJobEnd logs a successful run with its result attributes.
func LogJobEnd(ctx context.Context, job string, attrs ...slog.Attr) {
	args := withCorrelation(ctx, []any{slog.String("job", job)})
	for _, a := range attrs {
		args = append(args, a)
	}
	GlobalLogger.InfoContext(ctx, "job completed", args...)
}

// LogJobError logs a failed run. Jobs never propagate their errors further.
func LogJobError(ctx context.Context, job string, err error) {
	GlobalLogger.ErrorContext(ctx, "job failed",
		withCorrelation(ctx, []any{slog.String("job", job), slog.String("error", err.Error())})...)
}
