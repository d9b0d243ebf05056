package middleware

import (
	"context"
	"time"

	"github.com/miladsoleymani/mockjms/core"
)

// MetricsCollector is the interface that metrics backends must implement.
// This keeps the middleware decoupled from any specific metrics library.
type MetricsCollector interface {
	// MessageProcessed records that a listener handled a message.
	// destination is the name the message was delivered from, duration is
	// processing time, and err is nil on success.
	MessageProcessed(destination string, duration time.Duration, err error)
}

// Metrics returns middleware that reports processing metrics to the given collector.
func Metrics(collector MetricsCollector) core.Middleware {
	return func(next core.Listener) core.Listener {
		return func(ctx context.Context, msg core.Message) error {
			start := time.Now()
			err := next(ctx, msg)
			collector.MessageProcessed(destinationName(msg), time.Since(start), err)
			return err
		}
	}
}
