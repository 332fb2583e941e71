package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type Logger struct {
	base *slog.Logger
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout)
}

func NewLoggerTo(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	return &Logger{base: slog.New(handler)}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(context.Background(), slog.LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(context.Background(), slog.LevelWarn, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(context.Background(), slog.LevelError, message, fields)
}

// ErrorContext logs with the correlation id carried by ctx, if any.
func (l *Logger) ErrorContext(ctx context.Context, message string, fields map[string]any) {
	l.write(ctx, slog.LevelError, message, fields)
}

func (l *Logger) write(ctx context.Context, level slog.Level, message string, fields map[string]any) {
	attrs := make([]slog.Attr, 0, len(fields)+1)
	if id := CorrelationIDFromContext(ctx); id != "" {
		if _, ok := fields["correlation_id"]; !ok {
			attrs = append(attrs, slog.String("correlation_id", id))
		}
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	l.base.LogAttrs(ctx, level, message, attrs...)
}
