package middleware

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/miladsoleymani/mockjms/core"
)

// Recovery returns middleware that recovers from panics in listeners, logs
// the stack trace and returns the panic as an error, so the message is
// treated like any other listener failure.
func Recovery(logger *zap.Logger) core.Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next core.Listener) core.Listener {
		return func(ctx context.Context, msg core.Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					logger.Error("panic recovered",
						zap.Any("panic", r),
						zap.String("destination", destinationName(msg)),
						zap.ByteString("stack", buf[:n]),
					)
					err = fmt.Errorf("mockjms: panic recovered: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}
