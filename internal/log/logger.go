package log

import (
	"context"
	"log/slog"
)

// Logger is the logging interface used throughout the toolbox. It mirrors
// slog's context-aware leveled methods so call sites never need to know
// whether standard or structured output is in effect.
type Logger interface {
	DebugContext(ctx context.Context, msg string, keysAndValues ...any)
	InfoContext(ctx context.Context, msg string, keysAndValues ...any)
	WarnContext(ctx context.Context, msg string, keysAndValues ...any)
	ErrorContext(ctx context.Context, msg string, keysAndValues ...any)
	SlogLogger() *slog.Logger
}
