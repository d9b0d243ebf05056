package core

import (
	"context"
	"fmt"
)

// Consumer receives messages from a queue or a topic subscription, either by
// polling with Receive or by push through a Listener.
type Consumer struct {
	session *Session
	dest    Destination

	// selector is nil when selectors are disabled; selectorText keeps the
	// expression regardless.
	selector     *Selector
	selectorText string
	noLocal      bool

	sub      *subscription
	listener Listener
	closed   bool
}

func (c *Consumer) source() source {
	if c.sub != nil {
		return c.sub
	}
	return c.dest.(*Queue)
}

func (c *Consumer) check() error {
	if c.closed {
		return fmt.Errorf("%w: consumer is closed", ErrIllegalState)
	}
	return c.session.check()
}

func (c *Consumer) Destination() Destination { return c.dest }
func (c *Consumer) Session() *Session        { return c.session }
func (c *Consumer) MessageSelector() string  { return c.selectorText }
func (c *Consumer) NoLocal() bool            { return c.noLocal }

// IsDurable reports whether the consumer is a durable topic subscriber.
func (c *Consumer) IsDurable() bool { return c.sub != nil && c.sub.durable() }

// SubscriptionName returns the durable subscription name, or "".
func (c *Consumer) SubscriptionName() string {
	if c.sub == nil {
		return ""
	}
	return c.sub.key.name
}

// Receive returns the next message for the consumer. Since the mock never
// waits for messages to arrive, it returns a nil message when none is
// pending or the connection is stopped. A done ctx fails with ctx.Err().
func (c *Consumer) Receive(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ReceiveNoWait()
}

// ReceiveNoWait returns the next message or nil.
func (c *Consumer) ReceiveNoWait() (Message, error) {
	c.session.lock()
	defer c.session.unlock()
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.listener != nil {
		return nil, fmt.Errorf("%w: consumer has a message listener", ErrIllegalState)
	}
	if !c.session.conn.started {
		return nil, nil
	}
	from := c.source()
	auto := c.session.autoAck()
	msg := from.take(c, c.session.conn.factory.opts.clock(), !auto)
	if msg == nil {
		return nil, nil
	}
	c.session.onDeliver(msg, from)
	if auto {
		msg.msgHeader().acknowledged = true
	}
	return msg, nil
}

// SetMessageListener registers l for push delivery, or removes the listener
// when l is nil. Waiting messages are delivered before it returns if the
// connection is started; their listener errors are returned.
func (c *Consumer) SetMessageListener(l Listener) error {
	c.session.lock()
	if err := c.check(); err != nil {
		c.session.unlock()
		return err
	}
	c.listener = l
	c.session.unlock()
	return c.session.conn.factory.dispatch(context.Background())
}

func (c *Consumer) MessageListener() Listener {
	c.session.lock()
	defer c.session.unlock()
	return c.listener
}

// Close stops the consumer. A durable subscription stays and keeps
// collecting messages; a non-durable one is dropped with its backlog.
func (c *Consumer) Close() error {
	c.session.lock()
	defer c.session.unlock()
	c.closeLocked()
	return nil
}

func (c *Consumer) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.listener = nil
	switch {
	case c.sub == nil:
		if q, ok := c.dest.(*Queue); ok {
			q.consumers--
		}
	case c.sub.durable():
		c.sub.consumer = nil
	default:
		c.sub.topic.removeSubscription(c.sub)
	}
}

func (c *Consumer) IsClosed() bool {
	c.session.lock()
	defer c.session.unlock()
	return c.closed
}
