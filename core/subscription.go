package core

import "time"

// durableKey identifies a durable subscription.
type durableKey struct {
	clientID string
	name     string
}

// subscription is one subscriber's view of a topic. Non-durable
// subscriptions live as long as their consumer; durable ones outlive it and
// keep collecting messages while nobody is connected.
type subscription struct {
	topic    *Topic
	key      durableKey
	selector *Selector
	noLocal  bool
	backlog  backlog
	consumer *Consumer
}

func (s *subscription) durable() bool { return s.key.name != "" }

// isLocal reports whether a message published through origin counts as
// local to this subscription.
func (s *subscription) isLocal(origin *Connection) bool {
	if origin == nil {
		return false
	}
	if s.consumer != nil {
		return s.consumer.session.conn == origin
	}
	return s.key.clientID != "" && origin.clientID == s.key.clientID
}

// take ignores the consumer selector: the subscription filtered on publish.
func (s *subscription) take(_ *Consumer, now time.Time, hold bool) Message {
	return s.backlog.take(nil, now, hold)
}

func (s *subscription) settle(msg Message)  { s.backlog.settle(msg) }
func (s *subscription) release(msg Message) { s.backlog.release(msg) }

// sameTerms reports whether a re-subscription can resume s unchanged.
func (s *subscription) sameTerms(t *Topic, selector string, noLocal bool) bool {
	return s.topic == t && s.selector.String() == selector && s.noLocal == noLocal
}
