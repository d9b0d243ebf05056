package core

import (
	"context"
	"fmt"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	consumerKey
)

func withDelivery(ctx context.Context, c *Consumer) context.Context {
	ctx = context.WithValue(ctx, sessionKey, c.session)
	return context.WithValue(ctx, consumerKey, c)
}

// SessionFromContext returns the session that delivered the message a
// listener is handling.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok
}

// ConsumerFromContext returns the consumer a listener is registered on.
func ConsumerFromContext(ctx context.Context) (*Consumer, bool) {
	c, ok := ctx.Value(consumerKey).(*Consumer)
	return c, ok
}

// Reply sends resp to the reply-to destination of req through the
// delivering session. The correlation id of resp defaults to the message id
// of req.
//
//	func(ctx context.Context, msg core.Message) error {
//	    return core.Reply(ctx, msg, core.NewTextMessage("done"))
//	}
func Reply(ctx context.Context, req, resp Message) error {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: reply outside of a listener", ErrIllegalState)
	}
	dest := req.ReplyTo()
	if dest == nil {
		return fmt.Errorf("%w: message %q has no reply-to destination", ErrInvalidDestination, req.MessageID())
	}
	if resp.CorrelationID() == "" {
		resp.SetCorrelationID(req.MessageID())
	}
	p, err := s.CreateProducer(dest)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	defer p.Close()
	if err := p.Send(ctx, resp); err != nil {
		return fmt.Errorf("reply to %s: %w", dest.Name(), err)
	}
	return nil
}
