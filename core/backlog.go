package core

import "time"

// backlog is the message list behind a queue or a topic subscription.
// Messages taken by a session that has not acknowledged or committed them
// yet stay in the list as in flight: they still count towards its length
// but are not handed out again until released.
type backlog struct {
	msgs     []Message
	inflight map[Message]bool
}

func (b *backlog) push(msg Message) { b.msgs = append(b.msgs, msg) }

// take returns the first available message keep accepts, dropping expired
// ones on the way. With hold the message stays listed as in flight;
// otherwise it is removed.
func (b *backlog) take(keep func(Message) bool, now time.Time, hold bool) Message {
	for i := 0; i < len(b.msgs); {
		msg := b.msgs[i]
		if b.inflight[msg] {
			i++
			continue
		}
		if msg.msgHeader().expired(now) {
			b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
			continue
		}
		if keep != nil && !keep(msg) {
			i++
			continue
		}
		if hold {
			if b.inflight == nil {
				b.inflight = make(map[Message]bool)
			}
			b.inflight[msg] = true
		} else {
			b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
		}
		return msg
	}
	return nil
}

// settle removes an in-flight message for good.
func (b *backlog) settle(msg Message) {
	if !b.inflight[msg] {
		return
	}
	delete(b.inflight, msg)
	for i, m := range b.msgs {
		if m == msg {
			b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
			return
		}
	}
}

// release makes an in-flight message available again, moved to the front.
func (b *backlog) release(msg Message) {
	if !b.inflight[msg] {
		return
	}
	delete(b.inflight, msg)
	for i, m := range b.msgs {
		if m == msg {
			copy(b.msgs[1:i+1], b.msgs[:i])
			b.msgs[0] = msg
			return
		}
	}
}

// available returns the messages that are not in flight.
func (b *backlog) available() []Message {
	out := make([]Message, 0, len(b.msgs))
	for _, msg := range b.msgs {
		if !b.inflight[msg] {
			out = append(out, msg)
		}
	}
	return out
}

func (b *backlog) all() []Message { return append([]Message(nil), b.msgs...) }
func (b *backlog) len() int       { return len(b.msgs) }

func (b *backlog) clear() {
	b.msgs = nil
	b.inflight = nil
}
