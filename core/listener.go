package core

import "context"

// Listener receives messages pushed to a consumer. The context carries the
// delivering session and consumer, see SessionFromContext.
//
// A listener error on an auto-acknowledge session puts the message back at
// the front of its destination, marked redelivered.
type Listener func(ctx context.Context, msg Message) error

// Middleware wraps a Listener to add cross-cutting behavior.
//
//	func Timing() core.Middleware {
//	    return func(next core.Listener) core.Listener {
//	        return func(ctx context.Context, msg core.Message) error {
//	            start := time.Now()
//	            err := next(ctx, msg)
//	            log.Println(time.Since(start))
//	            return err
//	        }
//	    }
//	}
type Middleware func(Listener) Listener

// Chain wraps l with mws. Given [A, B, C] the call order is A -> B -> C -> l.
func Chain(l Listener, mws ...Middleware) Listener {
	for i := len(mws) - 1; i >= 0; i-- {
		l = mws[i](l)
	}
	return l
}
