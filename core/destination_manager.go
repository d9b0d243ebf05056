package core

import (
	"fmt"
	"sync"
)

// DestinationManager owns every named queue and topic of a connection
// factory, together with its durable subscriptions. Tests use it to set up
// destinations before the code under test looks them up, and to inspect
// them afterwards.
//
// Its mutex guards all broker state of the factory: destinations,
// connections, sessions and their consumers.
type DestinationManager struct {
	mu      sync.Mutex
	matcher NameMatcher

	queues   map[string]*Queue
	topics   map[string]*Topic
	order    []Destination
	durables map[durableKey]*subscription
}

func newDestinationManager() *DestinationManager {
	return &DestinationManager{
		matcher:  DefaultMatcher{},
		queues:   make(map[string]*Queue),
		topics:   make(map[string]*Topic),
		durables: make(map[durableKey]*subscription),
	}
}

// SetMatcher replaces the matcher used by Match.
func (dm *DestinationManager) SetMatcher(m NameMatcher) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.matcher = m
}

// CreateQueue returns the queue called name, creating it if needed.
func (dm *DestinationManager) CreateQueue(name string) *Queue {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.createQueue(name)
}

func (dm *DestinationManager) createQueue(name string) *Queue {
	if q, ok := dm.queues[name]; ok {
		return q
	}
	q := &Queue{name: name, dm: dm}
	dm.queues[name] = q
	dm.order = append(dm.order, q)
	return q
}

// Queue returns the queue called name or nil.
func (dm *DestinationManager) Queue(name string) *Queue {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.queues[name]
}

// RemoveQueue forgets the queue called name. Later sends to it fail with
// ErrInvalidDestination.
func (dm *DestinationManager) RemoveQueue(name string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if q, ok := dm.queues[name]; ok {
		q.deleted = true
		delete(dm.queues, name)
		dm.forget(q)
	}
}

// Queues returns the named queues in creation order.
func (dm *DestinationManager) Queues() []*Queue {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	var out []*Queue
	for _, d := range dm.order {
		if q, ok := d.(*Queue); ok {
			out = append(out, q)
		}
	}
	return out
}

// CreateTopic returns the topic called name, creating it if needed.
func (dm *DestinationManager) CreateTopic(name string) *Topic {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.createTopic(name)
}

func (dm *DestinationManager) createTopic(name string) *Topic {
	if t, ok := dm.topics[name]; ok {
		return t
	}
	t := &Topic{name: name, dm: dm}
	dm.topics[name] = t
	dm.order = append(dm.order, t)
	return t
}

// Topic returns the topic called name or nil.
func (dm *DestinationManager) Topic(name string) *Topic {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.topics[name]
}

// RemoveTopic forgets the topic called name and its durable subscriptions.
func (dm *DestinationManager) RemoveTopic(name string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	t, ok := dm.topics[name]
	if !ok {
		return
	}
	t.deleted = true
	delete(dm.topics, name)
	dm.forget(t)
	for key, sub := range dm.durables {
		if sub.topic == t {
			delete(dm.durables, key)
		}
	}
}

// Topics returns the named topics in creation order.
func (dm *DestinationManager) Topics() []*Topic {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	var out []*Topic
	for _, d := range dm.order {
		if t, ok := d.(*Topic); ok {
			out = append(out, t)
		}
	}
	return out
}

// Match returns the named destinations whose names match pattern, in
// creation order.
func (dm *DestinationManager) Match(pattern string) []Destination {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	var out []Destination
	for _, d := range dm.order {
		if dm.matcher.Match(pattern, d.Name()) {
			out = append(out, d)
		}
	}
	return out
}

// DurableSubscriptions returns the names of the durable subscriptions held
// for clientID.
func (dm *DestinationManager) DurableSubscriptions(clientID string) []string {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	var out []string
	for _, d := range dm.order {
		t, ok := d.(*Topic)
		if !ok {
			continue
		}
		for _, sub := range t.subs {
			if sub.durable() && sub.key.clientID == clientID {
				out = append(out, sub.key.name)
			}
		}
	}
	return out
}

// PendingDurable returns the messages a durable subscription holds for
// delivery, whether or not its subscriber is connected.
func (dm *DestinationManager) PendingDurable(clientID, name string) ([]Message, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	sub, ok := dm.durables[durableKey{clientID, name}]
	if !ok {
		return nil, fmt.Errorf("%w: no durable subscription %q for client %q", ErrInvalidDestination, name, clientID)
	}
	return sub.backlog.all(), nil
}

func (dm *DestinationManager) forget(d Destination) {
	for i, o := range dm.order {
		if o == d {
			dm.order = append(dm.order[:i], dm.order[i+1:]...)
			return
		}
	}
}

// resolve checks that d is a live destination of this manager.
func (dm *DestinationManager) resolve(d Destination) (Destination, error) {
	switch v := d.(type) {
	case *Queue:
		if v == nil {
			return nil, fmt.Errorf("%w: destination is nil", ErrInvalidDestination)
		}
		if v.dm == dm && !v.deleted {
			return v, nil
		}
	case *Topic:
		if v == nil {
			return nil, fmt.Errorf("%w: destination is nil", ErrInvalidDestination)
		}
		if v.dm == dm && !v.deleted {
			return v, nil
		}
	case nil:
		return nil, fmt.Errorf("%w: destination is nil", ErrInvalidDestination)
	}
	return nil, fmt.Errorf("%w: %s %q is unknown or deleted", ErrInvalidDestination, d.Kind(), d.Name())
}
