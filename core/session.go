package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AckMode governs when a delivered message counts as consumed. The values
// are those of the messaging API the package mocks.
type AckMode int

const (
	SessionTransacted AckMode = iota
	AutoAcknowledge
	ClientAcknowledge
	DupsOKAcknowledge
)

func (m AckMode) String() string {
	switch m {
	case SessionTransacted:
		return "SESSION_TRANSACTED"
	case AutoAcknowledge:
		return "AUTO_ACKNOWLEDGE"
	case ClientAcknowledge:
		return "CLIENT_ACKNOWLEDGE"
	case DupsOKAcknowledge:
		return "DUPS_OK_ACKNOWLEDGE"
	default:
		return fmt.Sprintf("AckMode(%d)", int(m))
	}
}

type received struct {
	msg  Message
	from source
}

type pendingSend struct {
	msg  Message
	dest Destination
}

// Session produces and consumes messages in one acknowledgment mode.
//
// In a transacted session sends are buffered and received messages stay in
// their destinations, held by the session, until Commit removes them.
// Rollback drops the buffered sends and gives the received messages back to
// the front of their destinations in their original order.
type Session struct {
	conn       *Connection
	transacted bool
	mode       AckMode
	closed     bool
	tm         *TransmissionManager

	unacked []received
	sends   []pendingSend

	commits   int
	rollbacks int
	recovers  int
}

// check fails on a closed session or connection. Callers hold the lock.
func (s *Session) check() error {
	if s.closed {
		return fmt.Errorf("%w: session is closed", ErrIllegalState)
	}
	return s.conn.check()
}

func (s *Session) lock()   { s.conn.factory.dm.mu.Lock() }
func (s *Session) unlock() { s.conn.factory.dm.mu.Unlock() }

// autoAck reports whether delivered messages are acknowledged right away.
func (s *Session) autoAck() bool {
	return !s.transacted && (s.mode == AutoAcknowledge || s.mode == DupsOKAcknowledge)
}

// onDeliver marks msg as delivered by s. Callers hold the lock.
func (s *Session) onDeliver(msg Message, from source) {
	freeze(msg)
	h := msg.msgHeader()
	h.session = s
	h.binder = s.conn.factory.opts.binder
	if !s.autoAck() {
		s.unacked = append(s.unacked, received{msg: msg, from: from})
	}
}

// restore gives every unacknowledged message back to the front of its
// destination, keeping their original order, flagged as redelivered.
// Callers hold the lock.
func (s *Session) restore() {
	for i := len(s.unacked) - 1; i >= 0; i-- {
		r := s.unacked[i]
		r.msg.msgHeader().redelivered = true
		r.from.release(r.msg)
	}
	s.unacked = nil
}

// settle consumes every unacknowledged message. Callers hold the lock.
func (s *Session) settle() {
	for _, r := range s.unacked {
		r.msg.msgHeader().acknowledged = true
		r.from.settle(r.msg)
	}
	s.unacked = nil
}

func (s *Session) Connection() *Connection { return s.conn }
func (s *Session) AckMode() AckMode        { return s.mode }
func (s *Session) Transacted() bool        { return s.transacted }

// TransmissionManager returns the registry of producers, consumers and
// browsers created by the session.
func (s *Session) TransmissionManager() *TransmissionManager { return s.tm }

func (s *Session) IsClosed() bool {
	s.lock()
	defer s.unlock()
	return s.closed
}

// Commits returns how many times Commit succeeded.
func (s *Session) Commits() int {
	s.lock()
	defer s.unlock()
	return s.commits
}

// Rollbacks returns how many times Rollback succeeded.
func (s *Session) Rollbacks() int {
	s.lock()
	defer s.unlock()
	return s.rollbacks
}

// Recovers returns how many times Recover succeeded.
func (s *Session) Recovers() int {
	s.lock()
	defer s.unlock()
	return s.recovers
}

// Unacknowledged returns the messages delivered by the session that are not
// acknowledged or committed yet.
func (s *Session) Unacknowledged() []Message {
	s.lock()
	defer s.unlock()
	out := make([]Message, len(s.unacked))
	for i, r := range s.unacked {
		out[i] = r.msg
	}
	return out
}

// Commit sends the buffered messages and consumes the received ones.
func (s *Session) Commit(ctx context.Context) error {
	s.lock()
	if err := s.check(); err != nil {
		s.unlock()
		return err
	}
	if !s.transacted {
		s.unlock()
		return fmt.Errorf("%w: commit on a non-transacted session", ErrIllegalState)
	}
	for _, p := range s.sends {
		s.conn.factory.route(p.msg, p.dest, s.conn)
	}
	sent, consumed := len(s.sends), len(s.unacked)
	s.settle()
	s.sends = nil
	s.commits++
	s.unlock()

	s.conn.factory.opts.logger.Debug("session committed",
		zap.Int("sent", sent),
		zap.Int("consumed", consumed),
	)
	return s.conn.factory.dispatch(ctx)
}

// Rollback drops the buffered sends and restores the received messages.
func (s *Session) Rollback(ctx context.Context) error {
	s.lock()
	if err := s.check(); err != nil {
		s.unlock()
		return err
	}
	if !s.transacted {
		s.unlock()
		return fmt.Errorf("%w: rollback on a non-transacted session", ErrIllegalState)
	}
	s.sends = nil
	s.restore()
	s.rollbacks++
	s.unlock()

	s.conn.factory.opts.logger.Debug("session rolled back")
	return s.conn.factory.dispatch(ctx)
}

// Recover restores every unacknowledged message so it is delivered again.
func (s *Session) Recover(ctx context.Context) error {
	s.lock()
	if err := s.check(); err != nil {
		s.unlock()
		return err
	}
	if s.transacted {
		s.unlock()
		return fmt.Errorf("%w: recover on a transacted session", ErrIllegalState)
	}
	s.restore()
	s.recovers++
	s.unlock()

	s.conn.factory.opts.logger.Debug("session recovered")
	return s.conn.factory.dispatch(ctx)
}

// Acknowledge acknowledges every message delivered by a client-acknowledge
// session so far. In other modes it does nothing.
func (s *Session) Acknowledge() error {
	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return err
	}
	if s.transacted || s.mode != ClientAcknowledge {
		return nil
	}
	s.settle()
	return nil
}

// Close closes the session with its producers, consumers and browsers. A
// transacted session is rolled back and a client-acknowledge session
// recovered first. Closing a closed session does nothing.
func (s *Session) Close() error {
	s.lock()
	if s.closed {
		s.unlock()
		return nil
	}
	s.closeLocked()
	s.unlock()
	return s.conn.factory.dispatch(context.Background())
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	if s.transacted {
		s.sends = nil
	}
	s.restore()
	for _, p := range s.tm.producers {
		p.closed = true
	}
	for _, c := range s.tm.consumers {
		c.closeLocked()
	}
	for _, b := range s.tm.browsers {
		b.closed = true
	}
	s.closed = true
}

// lookup returns the named destination of kind, creating it when the factory
// auto-creates destinations. Callers hold the lock.
func (s *Session) lookup(name string, kind DestinationKind) (Destination, error) {
	dm := s.conn.factory.dm
	auto := s.conn.factory.opts.autoCreate
	switch kind {
	case QueueKind:
		if q, ok := dm.queues[name]; ok {
			return q, nil
		}
		if auto {
			return dm.createQueue(name), nil
		}
	case TopicKind:
		if t, ok := dm.topics[name]; ok {
			return t, nil
		}
		if auto {
			return dm.createTopic(name), nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q does not exist", ErrInvalidDestination, kind, name)
}

// CreateQueue returns the queue called name. The queue must have been set
// up through the DestinationManager unless destinations are auto-created.
func (s *Session) CreateQueue(name string) (*Queue, error) {
	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	d, err := s.lookup(name, QueueKind)
	if err != nil {
		return nil, err
	}
	return d.(*Queue), nil
}

// CreateTopic returns the topic called name, like CreateQueue.
func (s *Session) CreateTopic(name string) (*Topic, error) {
	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	d, err := s.lookup(name, TopicKind)
	if err != nil {
		return nil, err
	}
	return d.(*Topic), nil
}

// CreateTemporaryQueue returns a queue that lives until it is deleted or the
// connection closes. Only the creating connection may consume from it.
func (s *Session) CreateTemporaryQueue() (*Queue, error) {
	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	q := &Queue{
		name:      "TemporaryQueue-" + uuid.NewString(),
		temporary: true,
		owner:     s.conn,
		dm:        s.conn.factory.dm,
	}
	s.conn.temps = append(s.conn.temps, q)
	return q, nil
}

// CreateTemporaryTopic returns a topic that lives until it is deleted or the
// connection closes.
func (s *Session) CreateTemporaryTopic() (*Topic, error) {
	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	t := &Topic{
		name:      "TemporaryTopic-" + uuid.NewString(),
		temporary: true,
		owner:     s.conn,
		dm:        s.conn.factory.dm,
	}
	s.conn.temps = append(s.conn.temps, t)
	return t, nil
}

// CreateProducer returns a producer bound to dest. A nil dest gives an
// unidentified producer that names the destination on every SendTo.
func (s *Session) CreateProducer(dest Destination) (*Producer, error) {
	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if dest != nil {
		d, err := s.conn.factory.dm.resolve(dest)
		if err != nil {
			return nil, err
		}
		dest = d
	}
	p := &Producer{
		session:  s,
		dest:     dest,
		mode:     Persistent,
		priority: DefaultPriority,
	}
	s.tm.producers = append(s.tm.producers, p)
	return p, nil
}

// ConsumerOption configures a consumer or browser.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	selector string
	noLocal  bool
}

// WithSelector filters delivered messages with a message selector.
func WithSelector(expr string) ConsumerOption {
	return func(o *consumerOptions) { o.selector = expr }
}

// WithNoLocal makes a topic subscriber skip messages published through its
// own connection.
func WithNoLocal() ConsumerOption {
	return func(o *consumerOptions) { o.noLocal = true }
}

func consumerDefaults(fns []ConsumerOption) (consumerOptions, *Selector, error) {
	var o consumerOptions
	for _, fn := range fns {
		fn(&o)
	}
	sel, err := ParseSelector(o.selector)
	return o, sel, err
}

// CreateConsumer returns a consumer on dest: a queue receiver or a
// non-durable topic subscriber.
func (s *Session) CreateConsumer(dest Destination, opts ...ConsumerOption) (*Consumer, error) {
	o, sel, err := consumerDefaults(opts)
	if err != nil {
		return nil, err
	}

	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	d, err := s.conn.factory.dm.resolve(dest)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(d); err != nil {
		return nil, err
	}

	c := &Consumer{
		session:      s,
		dest:         d,
		selectorText: sel.String(),
		noLocal:      o.noLocal,
	}
	if s.conn.factory.opts.useSelectors {
		c.selector = sel
	}
	switch t := d.(type) {
	case *Queue:
		t.consumers++
	case *Topic:
		c.sub = &subscription{topic: t, selector: sel, noLocal: o.noLocal, consumer: c}
		t.subs = append(t.subs, c.sub)
	}
	s.tm.consumers = append(s.tm.consumers, c)
	return c, nil
}

// CreateDurableSubscriber subscribes to topic under name. The subscription
// is keyed by the connection's client id and name and keeps collecting
// messages while no subscriber is open. Subscribing again with a different
// topic, selector or no-local flag replaces the subscription and its backlog.
func (s *Session) CreateDurableSubscriber(topic *Topic, name string, opts ...ConsumerOption) (*Consumer, error) {
	o, sel, err := consumerDefaults(opts)
	if err != nil {
		return nil, err
	}

	s.lock()
	c, err := s.subscribeDurable(topic, name, o, sel)
	s.unlock()
	if err != nil {
		return nil, err
	}
	s.conn.factory.opts.logger.Debug("durable subscriber created",
		zap.String("topic", topic.Name()),
		zap.String("subscription", name),
	)
	return c, nil
}

func (s *Session) subscribeDurable(topic *Topic, name string, o consumerOptions, sel *Selector) (*Consumer, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.conn.clientID == "" {
		return nil, fmt.Errorf("%w: durable subscriptions need a client id", ErrIllegalState)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: subscription name is empty", ErrInvalidArgument)
	}
	if topic == nil {
		return nil, fmt.Errorf("%w: destination is nil", ErrInvalidDestination)
	}
	dm := s.conn.factory.dm
	if _, err := dm.resolve(topic); err != nil {
		return nil, err
	}
	if topic.temporary {
		return nil, fmt.Errorf("%w: durable subscription on temporary %s", ErrInvalidDestination, topic)
	}

	key := durableKey{clientID: s.conn.clientID, name: name}
	sub, ok := dm.durables[key]
	if ok && sub.consumer != nil {
		return nil, fmt.Errorf("%w: durable subscription %q is in use", ErrIllegalState, name)
	}
	if ok && !sub.sameTerms(topic, sel.String(), o.noLocal) {
		sub.topic.removeSubscription(sub)
		delete(dm.durables, key)
		ok = false
	}
	if !ok {
		sub = &subscription{topic: topic, key: key, selector: sel, noLocal: o.noLocal}
		topic.subs = append(topic.subs, sub)
		dm.durables[key] = sub
	}

	c := &Consumer{
		session:      s,
		dest:         topic,
		selectorText: sel.String(),
		noLocal:      o.noLocal,
		sub:          sub,
	}
	if s.conn.factory.opts.useSelectors {
		c.selector = sel
	}
	sub.consumer = c
	s.tm.consumers = append(s.tm.consumers, c)
	return c, nil
}

// Unsubscribe deletes the durable subscription name of the connection's
// client id. It fails while a subscriber is open on it.
func (s *Session) Unsubscribe(name string) error {
	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return err
	}
	dm := s.conn.factory.dm
	key := durableKey{clientID: s.conn.clientID, name: name}
	sub, ok := dm.durables[key]
	if !ok {
		return fmt.Errorf("%w: no durable subscription %q", ErrInvalidDestination, name)
	}
	if sub.consumer != nil {
		return fmt.Errorf("%w: durable subscription %q is in use", ErrIllegalState, name)
	}
	sub.topic.removeSubscription(sub)
	delete(dm.durables, key)
	return nil
}

// CreateBrowser returns a browser over the pending messages of queue.
func (s *Session) CreateBrowser(queue *Queue, opts ...ConsumerOption) (*Browser, error) {
	_, sel, err := consumerDefaults(opts)
	if err != nil {
		return nil, err
	}

	s.lock()
	defer s.unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if queue == nil {
		return nil, fmt.Errorf("%w: destination is nil", ErrInvalidDestination)
	}
	if _, err := s.conn.factory.dm.resolve(queue); err != nil {
		return nil, err
	}
	b := &Browser{session: s, queue: queue, selectorText: sel.String()}
	if s.conn.factory.opts.useSelectors {
		b.selector = sel
	}
	s.tm.browsers = append(s.tm.browsers, b)
	return b, nil
}

// checkOwner rejects consumers on temporary destinations of other
// connections. Callers hold the lock.
func (s *Session) checkOwner(d Destination) error {
	var owner *Connection
	switch t := d.(type) {
	case *Queue:
		owner = t.owner
	case *Topic:
		owner = t.owner
	}
	if d.Temporary() && owner != s.conn {
		return fmt.Errorf("%w: temporary %s %q belongs to another connection", ErrInvalidDestination, d.Kind(), d.Name())
	}
	return nil
}

// checkOpen guards the message factory methods.
func (s *Session) checkOpen() error {
	s.lock()
	defer s.unlock()
	if s.closed {
		return fmt.Errorf("%w: session is closed", ErrIllegalState)
	}
	return nil
}

func (s *Session) CreateMessage() (*BasicMessage, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return NewMessage(), nil
}

func (s *Session) CreateTextMessage(text string) (*TextMessage, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return NewTextMessage(text), nil
}

func (s *Session) CreateBytesMessage() (*BytesMessage, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return NewBytesMessage(), nil
}

func (s *Session) CreateMapMessage() (*MapMessage, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return NewMapMessage(), nil
}

// CreateObjectMessage returns an object message holding v. It fails when v
// cannot be serialized.
func (s *Session) CreateObjectMessage(v any) (*ObjectMessage, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return NewObjectMessage(v)
}

func (s *Session) CreateStreamMessage() (*StreamMessage, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return NewStreamMessage(), nil
}
