package composables

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/pkg/logging"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	runIDKey
)

// WithLogger returns a new context carrying logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// UseLogger returns the logger from the context, or a discarding one.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := LoggerFromContext(ctx); ok {
		return logger
	}
	return logging.Nop()
}

// LoggerFromContext reports whether ctx carries a logger.
func LoggerFromContext(ctx context.Context) (*logrus.Entry, bool) {
	logger, ok := ctx.Value(loggerKey).(*logrus.Entry)
	return logger, ok && logger != nil
}

// WithRunID tags ctx with the id of the migration run it belongs to.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// UseRunID returns the run id of ctx; the second value is false when absent.
func UseRunID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey).(uuid.UUID)
	return id, ok
}
