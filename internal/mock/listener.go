package mock

import (
	"context"
	"sync"

	"github.com/miladsoleymani/mockjms/core"
)

// Listener records the messages delivered to it. Tests register Handle as a
// core.Listener and inspect what arrived afterwards.
type Listener struct {
	mu       sync.Mutex
	received []core.Message

	// Err is returned from Handle when set. FailFirst limits it to that many
	// calls.
	Err       error
	FailFirst int
	calls     int

	// OnMessage, when set, runs before Handle records the message.
	OnMessage func(ctx context.Context, msg core.Message) error
}

// Handle is the core.Listener.
func (l *Listener) Handle(ctx context.Context, msg core.Message) error {
	l.mu.Lock()
	l.calls++
	fail := l.Err != nil && (l.FailFirst == 0 || l.calls <= l.FailFirst)
	hook := l.OnMessage
	l.mu.Unlock()

	if fail {
		return l.Err
	}
	if hook != nil {
		if err := hook(ctx, msg); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.received = append(l.received, msg)
	l.mu.Unlock()
	return nil
}

// Received returns the messages handled successfully, in delivery order.
func (l *Listener) Received() []core.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Message, len(l.received))
	copy(out, l.received)
	return out
}

// Texts returns the bodies of the received text messages.
func (l *Listener) Texts() []string {
	var out []string
	for _, msg := range l.Received() {
		if tm, ok := msg.(*core.TextMessage); ok {
			out = append(out, tm.Text())
		}
	}
	return out
}

// Calls counts every invocation, failed ones included.
func (l *Listener) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
