package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/miladsoleymani/mockjms/core"
)

// Logging returns middleware that logs every listener invocation with its
// destination, message id, duration and error.
func Logging(logger *zap.Logger) core.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next core.Listener) core.Listener {
		return func(ctx context.Context, msg core.Message) error {
			start := time.Now()
			err := next(ctx, msg)

			fields := []zap.Field{
				zap.String("destination", destinationName(msg)),
				zap.String("message_id", msg.MessageID()),
				zap.Bool("redelivered", msg.Redelivered()),
				zap.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.Error("listener failed", append(fields, zap.Error(err))...)
			} else {
				logger.Info("message handled", fields...)
			}
			return err
		}
	}
}

func destinationName(msg core.Message) string {
	if d := msg.Destination(); d != nil {
		return d.Name()
	}
	return ""
}
