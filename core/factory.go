package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ConnectionFactory creates connections that share one set of destinations.
// It is the entry point of the mock: tests create a factory, set up queues
// and topics through its DestinationManager and hand the factory to the code
// under test.
type ConnectionFactory struct {
	opts  options
	dm    *DestinationManager
	conns []*Connection
	err   error

	// dispatching is set while some goroutine runs the delivery loop.
	dispatching bool
}

// NewConnectionFactory returns a factory with its own destination manager.
func NewConnectionFactory(fns ...Option) *ConnectionFactory {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &ConnectionFactory{opts: opts, dm: newDestinationManager()}
}

// DestinationManager returns the destinations shared by the factory's connections.
func (f *ConnectionFactory) DestinationManager() *DestinationManager { return f.dm }

// Logger returns the factory logger.
func (f *ConnectionFactory) Logger() *zap.Logger { return f.opts.logger }

// CreateConnection returns a new, stopped connection. It carries the client
// id configured with WithClientID, if any.
func (f *ConnectionFactory) CreateConnection() (*Connection, error) {
	f.dm.mu.Lock()
	if err := f.err; err != nil {
		f.err = nil
		f.dm.mu.Unlock()
		return nil, fmt.Errorf("create connection: %w", err)
	}
	c := &Connection{factory: f, clientID: f.opts.clientID}
	f.conns = append(f.conns, c)
	n := len(f.conns)
	f.dm.mu.Unlock()

	f.opts.logger.Debug("connection created",
		zap.Int("index", n-1),
		zap.String("client_id", c.clientID),
	)
	return c, nil
}

// SetError makes the next CreateConnection fail with err.
func (f *ConnectionFactory) SetError(err error) {
	f.dm.mu.Lock()
	defer f.dm.mu.Unlock()
	f.err = err
}

// Connections returns every connection created so far, closed ones included.
func (f *ConnectionFactory) Connections() []*Connection {
	f.dm.mu.Lock()
	defer f.dm.mu.Unlock()
	return append([]*Connection(nil), f.conns...)
}

// Connection returns the i-th created connection or nil.
func (f *ConnectionFactory) Connection(i int) *Connection {
	f.dm.mu.Lock()
	defer f.dm.mu.Unlock()
	if i < 0 || i >= len(f.conns) {
		return nil
	}
	return f.conns[i]
}

// route hands msg to dest. Callers hold the lock.
func (f *ConnectionFactory) route(msg Message, dest Destination, origin *Connection) {
	switch d := dest.(type) {
	case *Queue:
		d.backlog.push(msg)
		d.received = append(d.received, msg)
	case *Topic:
		d.publish(msg, origin, f.opts.useSelectors)
	}
}

type delivery struct {
	consumer *Consumer
	listener Listener
	msg      Message
	from     source
}

// dispatch pushes pending messages to listeners until nothing deliverable is
// left. Only one goroutine runs the loop at a time; a call made while it is
// running returns at once and the running loop picks up the new messages.
//
// A consumer whose listener fails is skipped for the rest of the run so a
// failing listener cannot spin on its own redeliveries.
func (f *ConnectionFactory) dispatch(ctx context.Context) error {
	f.dm.mu.Lock()
	if f.dispatching {
		f.dm.mu.Unlock()
		return nil
	}
	f.dispatching = true
	f.dm.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			f.dm.mu.Lock()
			f.dispatching = false
			f.dm.mu.Unlock()
		}
	}()

	var errs []error
	skip := make(map[*Consumer]bool)
	for {
		f.dm.mu.Lock()
		d, ok := f.nextDelivery(skip)
		if !ok {
			f.dispatching = false
			finished = true
			f.dm.mu.Unlock()
			break
		}
		f.dm.mu.Unlock()

		if err := f.deliver(ctx, d); err != nil {
			skip[d.consumer] = true
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// nextDelivery finds the first consumer, in creation order, that has a
// listener and a deliverable message. Callers hold the lock.
func (f *ConnectionFactory) nextDelivery(skip map[*Consumer]bool) (delivery, bool) {
	now := f.opts.clock()
	for _, conn := range f.conns {
		if conn.closed || !conn.started {
			continue
		}
		for _, s := range conn.sessions {
			if s.closed {
				continue
			}
			for _, c := range s.tm.consumers {
				if c.closed || c.listener == nil || skip[c] {
					continue
				}
				from := c.source()
				msg := from.take(c, now, true)
				if msg == nil {
					continue
				}
				s.onDeliver(msg, from)
				return delivery{consumer: c, listener: c.listener, msg: msg, from: from}, true
			}
		}
	}
	return delivery{}, false
}

// deliver runs the listener for a message held in its source. In auto and
// dups-ok mode the message is consumed when the listener returns nil and
// released for redelivery otherwise; a panic counts as a failure.
func (f *ConnectionFactory) deliver(ctx context.Context, d delivery) error {
	err := f.run(ctx, d)

	f.dm.mu.Lock()
	defer f.dm.mu.Unlock()
	s := d.consumer.session
	h := d.msg.msgHeader()
	if err != nil {
		if s.autoAck() {
			h.redelivered = true
			d.from.release(d.msg)
		}
		f.opts.logger.Debug("listener failed",
			zap.String("destination", d.consumer.dest.Name()),
			zap.String("message_id", h.id),
			zap.Error(err),
		)
		return &ListenerError{Destination: d.consumer.dest.Name(), MessageID: h.id, Err: err}
	}
	if s.autoAck() {
		h.acknowledged = true
		d.from.settle(d.msg)
	}
	return nil
}

func (f *ConnectionFactory) run(ctx context.Context, d delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	l := Chain(d.listener, f.opts.middleware...)
	return l(withDelivery(ctx, d.consumer), d.msg)
}
