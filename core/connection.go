package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ExceptionListener is told about errors injected with Connection.SetError.
type ExceptionListener func(err error)

// Connection is a session factory with a running/stopped state that gates
// delivery. It holds no network resource.
//
// New connections are stopped: messages accumulate in their destinations and
// Receive returns nothing until Start is called.
type Connection struct {
	factory *ConnectionFactory

	clientID       string
	clientIDLocked bool
	started        bool
	closed         bool

	sessions          []*Session
	temps             []Destination
	exceptionListener ExceptionListener
	err               error
}

// check fails if the connection is closed, or with an injected error.
// Callers hold the lock.
func (c *Connection) check() error {
	if c.closed {
		return fmt.Errorf("%w: connection is closed", ErrIllegalState)
	}
	c.clientIDLocked = true
	if err := c.err; err != nil {
		c.err = nil
		return err
	}
	return nil
}

// Factory returns the factory that created the connection.
func (c *Connection) Factory() *ConnectionFactory { return c.factory }

// ClientID returns the client id, which may be empty.
func (c *Connection) ClientID() string {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	return c.clientID
}

// SetClientID sets the client id. It must be called before the connection
// is used for anything else, and id must not be held by another open
// connection of the factory.
func (c *Connection) SetClientID(id string) error {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: connection is closed", ErrIllegalState)
	}
	if c.clientIDLocked {
		return fmt.Errorf("%w: client id can only be set before the connection is used", ErrIllegalState)
	}
	if id == "" {
		return fmt.Errorf("%w: client id is empty", ErrInvalidClientID)
	}
	for _, other := range c.factory.conns {
		if other != c && !other.closed && other.clientID == id {
			return fmt.Errorf("%w: %q is in use", ErrInvalidClientID, id)
		}
	}
	c.clientID = id
	c.clientIDLocked = true
	return nil
}

// Start enables delivery and pushes waiting messages to listeners.
func (c *Connection) Start(ctx context.Context) error {
	c.factory.dm.mu.Lock()
	if err := c.check(); err != nil {
		c.factory.dm.mu.Unlock()
		return err
	}
	c.started = true
	id := c.clientID
	c.factory.dm.mu.Unlock()

	c.factory.opts.logger.Debug("connection started", zap.String("client_id", id))
	return c.factory.dispatch(ctx)
}

// Stop pauses delivery. Sends keep working.
func (c *Connection) Stop() error {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	c.started = false
	return nil
}

// Close closes every session and deletes the temporary destinations the
// connection created. Closing a closed connection does nothing.
func (c *Connection) Close() error {
	c.factory.dm.mu.Lock()
	if c.closed {
		c.factory.dm.mu.Unlock()
		return nil
	}
	for _, s := range c.sessions {
		s.closeLocked()
	}
	for _, d := range c.temps {
		switch t := d.(type) {
		case *Queue:
			t.deleted = true
			t.backlog.clear()
		case *Topic:
			t.deleted = true
			t.subs = nil
		}
	}
	c.temps = nil
	c.closed = true
	c.started = false
	id := c.clientID
	c.factory.dm.mu.Unlock()

	c.factory.opts.logger.Debug("connection closed", zap.String("client_id", id))
	// messages given back by closed sessions may be due elsewhere
	return c.factory.dispatch(context.Background())
}

func (c *Connection) IsStarted() bool {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	return c.started
}

func (c *Connection) IsClosed() bool {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	return c.closed
}

// CreateSession opens a session. A transacted session ignores mode.
func (c *Connection) CreateSession(transacted bool, mode AckMode) (*Session, error) {
	if transacted {
		mode = SessionTransacted
	} else if mode != AutoAcknowledge && mode != ClientAcknowledge && mode != DupsOKAcknowledge {
		return nil, fmt.Errorf("%w: acknowledge mode %s", ErrInvalidArgument, mode)
	}

	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	if err := c.check(); err != nil {
		return nil, err
	}
	s := &Session{
		conn:       c,
		transacted: transacted,
		mode:       mode,
		tm:         &TransmissionManager{dm: c.factory.dm},
	}
	c.sessions = append(c.sessions, s)
	return s, nil
}

// Sessions returns every session created on the connection.
func (c *Connection) Sessions() []*Session {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	return append([]*Session(nil), c.sessions...)
}

// Session returns the i-th created session or nil.
func (c *Connection) Session(i int) *Session {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	if i < 0 || i >= len(c.sessions) {
		return nil
	}
	return c.sessions[i]
}

// TemporaryDestinations returns the live temporary queues and topics the
// connection created.
func (c *Connection) TemporaryDestinations() []Destination {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	return append([]Destination(nil), c.temps...)
}

func (c *Connection) SetExceptionListener(l ExceptionListener) {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	c.exceptionListener = l
}

func (c *Connection) ExceptionListener() ExceptionListener {
	c.factory.dm.mu.Lock()
	defer c.factory.dm.mu.Unlock()
	return c.exceptionListener
}

// SetError injects err: the exception listener is called with it right away
// and the next operation that checks the connection fails with it once.
// A nil err clears a pending injected error.
func (c *Connection) SetError(err error) {
	c.factory.dm.mu.Lock()
	c.err = err
	l := c.exceptionListener
	c.factory.dm.mu.Unlock()

	if err != nil && l != nil {
		l(err)
	}
}

// forgetTemporary drops d from the owned temporaries. Callers hold the lock.
func (c *Connection) forgetTemporary(d Destination) {
	for i, t := range c.temps {
		if t == d {
			c.temps = append(c.temps[:i], c.temps[i+1:]...)
			return
		}
	}
}
