package core

import (
	"context"
	"fmt"
	"sync"
)

// Router wires listeners to destinations by name pattern. It provides an
// Echo-like API on top of a connection: register patterns and middleware,
// then Start opens one auto-acknowledge session with a consumer per matched
// destination and starts the connection.
type Router struct {
	conn        *Connection
	middlewares []Middleware
	patterns    []string
	routes      map[string]Listener
	session     *Session
	mu          sync.Mutex
	started     bool
}

// NewRouter returns a Router delivering through conn.
func NewRouter(conn *Connection) *Router {
	return &Router{
		conn:   conn,
		routes: make(map[string]Listener),
	}
}

// Use registers middleware for every route. Given [A, B, C] the call order
// is A -> B -> C -> listener.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Handle registers l for every destination whose name matches pattern.
// Registering a pattern again replaces its listener.
//
//	r.Handle("orders.*", func(ctx context.Context, msg core.Message) error {
//	    var order Order
//	    if err := msg.(*core.TextMessage).Bind(&order); err != nil {
//	        return err
//	    }
//	    return nil
//	})
func (r *Router) Handle(pattern string, l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[pattern]; !ok {
		r.patterns = append(r.patterns, pattern)
	}
	r.routes[pattern] = l
}

// Start subscribes every registered pattern and starts the connection.
// Unlike a network router it does not block: delivery happens on the
// goroutines that send messages.
func (r *Router) Start(ctx context.Context) error {
	bindings, err := r.subscribe()
	if err != nil {
		return err
	}
	// listeners may call back into the router, so deliver without holding r.mu
	for _, b := range bindings {
		if err := b.consumer.SetMessageListener(b.listener); err != nil {
			return fmt.Errorf("subscribe %s: %w", b.consumer.Destination().Name(), err)
		}
	}
	if err := r.conn.Start(ctx); err != nil {
		return fmt.Errorf("router start: %w", err)
	}
	return nil
}

type routeBinding struct {
	consumer *Consumer
	listener Listener
}

func (r *Router) subscribe() ([]routeBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil, ErrNoConnection
	}
	if r.started {
		return nil, ErrAlreadyStarted
	}

	dm := r.conn.factory.dm
	matched := make([][]Destination, len(r.patterns))
	for i, pattern := range r.patterns {
		matched[i] = dm.Match(pattern)
		if len(matched[i]) == 0 {
			return nil, fmt.Errorf("%w: pattern %q matches no destination", ErrInvalidDestination, pattern)
		}
	}

	s, err := r.conn.CreateSession(false, AutoAcknowledge)
	if err != nil {
		return nil, fmt.Errorf("router session: %w", err)
	}
	var bindings []routeBinding
	for i, pattern := range r.patterns {
		l := Chain(r.routes[pattern], r.middlewares...)
		for _, d := range matched[i] {
			c, err := s.CreateConsumer(d)
			if err != nil {
				// nothing was delivered through s yet, so closing needs no dispatch
				s.lock()
				s.closeLocked()
				s.unlock()
				return nil, fmt.Errorf("subscribe %s: %w", d.Name(), err)
			}
			bindings = append(bindings, routeBinding{consumer: c, listener: l})
		}
	}
	r.session = s
	r.started = true
	return bindings, nil
}

// Session returns the session opened by Start, or nil.
func (r *Router) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Close closes the router session. The connection stays open.
func (r *Router) Close() error {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.started = false
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
