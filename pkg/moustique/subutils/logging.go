package subutils

import (
	"context"

	"github.com/tsarna/moustique/pkg/moustique"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingHandler wraps another handler and logs every message it receives.
// If the wrapped handler is nil, it acts as a standalone logging handler.
type LoggingHandler struct {
	wrapped  moustique.Handler // can be nil
	logger   *zap.Logger
	logLevel zapcore.Level
	name     string
}

// NewLoggingHandler creates a new LoggingHandler that wraps another handler.
func NewLoggingHandler(wrapped moustique.Handler, logger *zap.Logger, logLevel zapcore.Level) *LoggingHandler {
	return NewNamedLoggingHandler(wrapped, logger, logLevel, "LoggingHandler")
}

// NewNamedLoggingHandler is NewLoggingHandler with a custom name for the logs.
func NewNamedLoggingHandler(wrapped moustique.Handler, logger *zap.Logger, logLevel zapcore.Level, name string) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LoggingHandler{
		wrapped:  wrapped,
		logger:   logger,
		logLevel: logLevel,
		name:     name,
	}
}

// OnMessage logs the message and calls the wrapped handler if present
func (l *LoggingHandler) OnMessage(ctx context.Context, topic, message, from string) error {
	l.logger.Log(l.logLevel, "Message received",
		zap.String("handler", l.name),
		zap.String("topic", topic),
		zap.String("message", message),
		zap.String("from", from),
		zap.Bool("hasWrapped", l.wrapped != nil),
	)

	if l.wrapped != nil {
		return l.wrapped.OnMessage(ctx, topic, message, from)
	}

	return nil
}
