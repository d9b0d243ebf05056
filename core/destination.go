package core

import (
	"fmt"
	"time"
)

// DestinationKind tells queues and topics apart.
type DestinationKind int

const (
	QueueKind DestinationKind = iota + 1
	TopicKind
)

func (k DestinationKind) String() string {
	switch k {
	case QueueKind:
		return "queue"
	case TopicKind:
		return "topic"
	default:
		return "unknown"
	}
}

// Destination is a named queue or topic.
type Destination interface {
	Name() string
	Kind() DestinationKind
	Temporary() bool
}

// source is somewhere delivered messages come from: a queue or a topic
// subscription. A message taken with hold stays in the source until it is
// settled, or becomes available again at the front when released.
type source interface {
	take(c *Consumer, now time.Time, hold bool) Message
	settle(msg Message)
	release(msg Message)
}

// Queue is a point-to-point destination holding pending messages in FIFO order.
type Queue struct {
	name      string
	temporary bool
	owner     *Connection
	dm        *DestinationManager

	backlog   backlog
	received  []Message
	consumers int
	deleted   bool
}

func (q *Queue) Name() string          { return q.name }
func (q *Queue) Kind() DestinationKind { return QueueKind }
func (q *Queue) Temporary() bool       { return q.temporary }
func (q *Queue) String() string        { return "queue://" + q.name }

// Messages returns the messages currently in the queue, in queue order.
// Messages received by a transacted or client-acknowledge session stay
// listed until the session commits or acknowledges them.
func (q *Queue) Messages() []Message {
	q.dm.mu.Lock()
	defer q.dm.mu.Unlock()
	return q.backlog.all()
}

// ReceivedMessages returns every message that ever arrived at the queue,
// including those already consumed.
func (q *Queue) ReceivedMessages() []Message {
	q.dm.mu.Lock()
	defer q.dm.mu.Unlock()
	return append([]Message(nil), q.received...)
}

// Len returns the number of messages in the queue, counted like Messages.
func (q *Queue) Len() int {
	q.dm.mu.Lock()
	defer q.dm.mu.Unlock()
	return q.backlog.len()
}

func (q *Queue) IsEmpty() bool { return q.Len() == 0 }

// Clear drops waiting and received messages.
func (q *Queue) Clear() {
	q.dm.mu.Lock()
	defer q.dm.mu.Unlock()
	q.backlog.clear()
	q.received = nil
}

// Delete removes a temporary queue. It fails while consumers are open.
func (q *Queue) Delete() error {
	q.dm.mu.Lock()
	defer q.dm.mu.Unlock()
	if !q.temporary {
		return fmt.Errorf("%w: only temporary queues can be deleted", ErrUnsupported)
	}
	if q.consumers > 0 {
		return fmt.Errorf("%w: %s has %d open consumers", ErrIllegalState, q, q.consumers)
	}
	q.deleted = true
	q.backlog.clear()
	if q.owner != nil {
		q.owner.forgetTemporary(q)
	}
	return nil
}

func (q *Queue) take(c *Consumer, now time.Time, hold bool) Message {
	return q.backlog.take(c.selector.Matches, now, hold)
}

func (q *Queue) settle(msg Message)  { q.backlog.settle(msg) }
func (q *Queue) release(msg Message) { q.backlog.release(msg) }

// Topic is a publish/subscribe destination that fans messages out to its
// subscriptions.
type Topic struct {
	name      string
	temporary bool
	owner     *Connection
	dm        *DestinationManager

	subs     []*subscription
	received []Message
	deleted  bool
}

func (t *Topic) Name() string          { return t.name }
func (t *Topic) Kind() DestinationKind { return TopicKind }
func (t *Topic) Temporary() bool       { return t.temporary }
func (t *Topic) String() string        { return "topic://" + t.name }

// ReceivedMessages returns every message published to the topic.
func (t *Topic) ReceivedMessages() []Message {
	t.dm.mu.Lock()
	defer t.dm.mu.Unlock()
	return append([]Message(nil), t.received...)
}

// Subscriptions returns the number of subscriptions, durable ones included.
func (t *Topic) Subscriptions() int {
	t.dm.mu.Lock()
	defer t.dm.mu.Unlock()
	return len(t.subs)
}

// Clear drops the published history and every subscription's backlog.
func (t *Topic) Clear() {
	t.dm.mu.Lock()
	defer t.dm.mu.Unlock()
	t.received = nil
	for _, sub := range t.subs {
		sub.backlog.clear()
	}
}

// Delete removes a temporary topic. It fails while subscribers are open.
func (t *Topic) Delete() error {
	t.dm.mu.Lock()
	defer t.dm.mu.Unlock()
	if !t.temporary {
		return fmt.Errorf("%w: only temporary topics can be deleted", ErrUnsupported)
	}
	if len(t.subs) > 0 {
		return fmt.Errorf("%w: %s has %d open subscribers", ErrIllegalState, t, len(t.subs))
	}
	t.deleted = true
	if t.owner != nil {
		t.owner.forgetTemporary(t)
	}
	return nil
}

// publish records msg and copies it into every matching subscription.
func (t *Topic) publish(msg Message, origin *Connection, useSelectors bool) {
	t.received = append(t.received, msg)
	for _, sub := range t.subs {
		if sub.noLocal && sub.isLocal(origin) {
			continue
		}
		if useSelectors && !sub.selector.Matches(msg) {
			continue
		}
		cp := msg.Clone()
		cp.msgHeader().origin = origin
		sub.backlog.push(cp)
	}
}

func (t *Topic) removeSubscription(sub *subscription) {
	for i, s := range t.subs {
		if s == sub {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return
		}
	}
}

func sameDestination(a, b Destination) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.Name() == b.Name()
}
