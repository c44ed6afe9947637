package logging

import (
	"context"

	"go.uber.org/zap"
)

type loggerContextKey struct{}

// InjectLogger returns a new context carrying the given logger.
func InjectLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// GetLoggerFromContext returns the logger carried by ctx, falling back to the
// process-global logger if none was injected. Callers never need to nil-check
// the result.
func GetLoggerFromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey{}).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	return zap.L()
}
