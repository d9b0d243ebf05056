package core

import "fmt"

// Browser looks at the messages of a queue without consuming them.
type Browser struct {
	session      *Session
	queue        *Queue
	selector     *Selector
	selectorText string
	closed       bool
}

func (b *Browser) Queue() *Queue           { return b.queue }
func (b *Browser) MessageSelector() string { return b.selectorText }

// Browse returns read-only copies of the messages that match the selector,
// in queue order. Expired messages and messages a session holds
// unacknowledged are left out.
func (b *Browser) Browse() ([]Message, error) {
	b.session.lock()
	defer b.session.unlock()
	if b.closed {
		return nil, fmt.Errorf("%w: browser is closed", ErrIllegalState)
	}
	if err := b.session.check(); err != nil {
		return nil, err
	}
	now := b.session.conn.factory.opts.clock()
	var out []Message
	for _, msg := range b.queue.backlog.available() {
		if msg.msgHeader().expired(now) || !b.selector.Matches(msg) {
			continue
		}
		cp := msg.Clone()
		freeze(cp)
		out = append(out, cp)
	}
	return out, nil
}

func (b *Browser) Close() error {
	b.session.lock()
	defer b.session.unlock()
	b.closed = true
	return nil
}

func (b *Browser) IsClosed() bool {
	b.session.lock()
	defer b.session.unlock()
	return b.closed
}
