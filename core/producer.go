package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendOption overrides a producer default for one send.
type SendOption func(*sendOptions)

type sendOptions struct {
	mode     DeliveryMode
	priority int
	ttl      time.Duration
}

// WithDeliveryMode sets the delivery mode of one send.
func WithDeliveryMode(m DeliveryMode) SendOption {
	return func(o *sendOptions) { o.mode = m }
}

// WithPriority sets the priority (0..9) of one send.
func WithPriority(p int) SendOption {
	return func(o *sendOptions) { o.priority = p }
}

// WithTimeToLive makes the message expire ttl after it is sent. Zero means
// it never expires.
func WithTimeToLive(ttl time.Duration) SendOption {
	return func(o *sendOptions) { o.ttl = ttl }
}

func (o sendOptions) validate() error {
	if o.mode != Persistent && o.mode != NonPersistent {
		return fmt.Errorf("%w: delivery mode %d", ErrInvalidArgument, int(o.mode))
	}
	if o.priority < 0 || o.priority > 9 {
		return fmt.Errorf("%w: priority %d is outside 0..9", ErrInvalidArgument, o.priority)
	}
	if o.ttl < 0 {
		return fmt.Errorf("%w: negative time to live", ErrInvalidArgument)
	}
	return nil
}

// Producer sends messages to a destination, or to any destination when it
// was created without one.
type Producer struct {
	session *Session
	dest    Destination

	mode             DeliveryMode
	priority         int
	ttl              time.Duration
	disableID        bool
	disableTimestamp bool
	closed           bool
}

func (p *Producer) check() error {
	if p.closed {
		return fmt.Errorf("%w: producer is closed", ErrIllegalState)
	}
	return p.session.check()
}

// Destination returns the destination the producer is bound to, or nil.
func (p *Producer) Destination() Destination { return p.dest }

func (p *Producer) Session() *Session { return p.session }

func (p *Producer) DeliveryMode() DeliveryMode {
	p.session.lock()
	defer p.session.unlock()
	return p.mode
}

func (p *Producer) SetDeliveryMode(m DeliveryMode) error {
	return p.set(func(o *sendOptions) { o.mode = m })
}

func (p *Producer) Priority() int {
	p.session.lock()
	defer p.session.unlock()
	return p.priority
}

func (p *Producer) SetPriority(prio int) error {
	return p.set(func(o *sendOptions) { o.priority = prio })
}

func (p *Producer) TimeToLive() time.Duration {
	p.session.lock()
	defer p.session.unlock()
	return p.ttl
}

func (p *Producer) SetTimeToLive(ttl time.Duration) error {
	return p.set(func(o *sendOptions) { o.ttl = ttl })
}

// set validates and stores new producer defaults.
func (p *Producer) set(fn SendOption) error {
	p.session.lock()
	defer p.session.unlock()
	if err := p.check(); err != nil {
		return err
	}
	o := sendOptions{mode: p.mode, priority: p.priority, ttl: p.ttl}
	fn(&o)
	if err := o.validate(); err != nil {
		return err
	}
	p.mode, p.priority, p.ttl = o.mode, o.priority, o.ttl
	return nil
}

// SetDisableMessageID stops the producer from assigning message ids.
func (p *Producer) SetDisableMessageID(disable bool) {
	p.session.lock()
	defer p.session.unlock()
	p.disableID = disable
}

// SetDisableMessageTimestamp stops the producer from stamping send times.
func (p *Producer) SetDisableMessageTimestamp(disable bool) {
	p.session.lock()
	defer p.session.unlock()
	p.disableTimestamp = disable
}

// Send sends msg to the producer's destination.
//
// The header fields set by sending (destination, id, timestamp, delivery
// mode, priority, expiration) are written to msg itself. Unless the factory
// was built WithCloneOnSend(false), a copy of msg is what gets enqueued.
// In a transacted session the message is only routed on Commit. Listeners
// that become due are run before Send returns.
func (p *Producer) Send(ctx context.Context, msg Message, opts ...SendOption) error {
	if p.dest == nil {
		return fmt.Errorf("%w: producer has no destination, use SendTo", ErrUnsupported)
	}
	return p.send(ctx, p.dest, msg, opts)
}

// SendTo sends msg to dest. Only producers created without a destination
// can use it.
func (p *Producer) SendTo(ctx context.Context, dest Destination, msg Message, opts ...SendOption) error {
	if p.dest != nil {
		return fmt.Errorf("%w: producer is bound to %s", ErrUnsupported, p.dest.Name())
	}
	return p.send(ctx, dest, msg, opts)
}

func (p *Producer) send(ctx context.Context, dest Destination, msg Message, opts []SendOption) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := p.session
	f := s.conn.factory
	s.lock()
	if err := p.check(); err != nil {
		s.unlock()
		return err
	}
	d, err := f.dm.resolve(dest)
	if err != nil {
		s.unlock()
		return err
	}
	o := sendOptions{mode: p.mode, priority: p.priority, ttl: p.ttl}
	for _, fn := range opts {
		fn(&o)
	}
	if err := o.validate(); err != nil {
		s.unlock()
		return err
	}

	now := f.opts.clock()
	h := msg.msgHeader()
	h.destination = d
	h.deliveryMode = o.mode
	h.priority = o.priority
	h.redelivered = false
	h.id = ""
	if !p.disableID {
		h.id = "ID:" + uuid.NewString()
	}
	h.timestamp = time.Time{}
	if !p.disableTimestamp {
		h.timestamp = now
	}
	h.expiration = time.Time{}
	if o.ttl > 0 {
		h.expiration = now.Add(o.ttl)
	}

	out := msg
	if f.opts.cloneOnSend {
		out = msg.Clone()
	}
	out.msgHeader().origin = s.conn
	id := h.id

	if s.transacted {
		s.sends = append(s.sends, pendingSend{msg: out, dest: d})
		s.unlock()
		f.opts.logger.Debug("message buffered",
			zap.String("destination", d.Name()),
			zap.String("message_id", id),
		)
		return nil
	}
	f.route(out, d, s.conn)
	s.unlock()

	f.opts.logger.Debug("message sent",
		zap.String("destination", d.Name()),
		zap.Stringer("kind", d.Kind()),
		zap.String("message_id", id),
	)
	return f.dispatch(ctx)
}

// Close closes the producer. Closing twice does nothing.
func (p *Producer) Close() error {
	p.session.lock()
	defer p.session.unlock()
	p.closed = true
	return nil
}

func (p *Producer) IsClosed() bool {
	p.session.lock()
	defer p.session.unlock()
	return p.closed
}
