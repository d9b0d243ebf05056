package core

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a ConnectionFactory.
type Option func(*options)

type options struct {
	clientID     string
	cloneOnSend  bool
	useSelectors bool
	autoCreate   bool
	logger       *zap.Logger
	clock        func() time.Time
	middleware   []Middleware
	binder       Binder
}

func defaults() options {
	return options{
		cloneOnSend:  true,
		useSelectors: true,
		logger:       zap.NewNop(),
		clock:        time.Now,
		binder:       JSONBinder{},
	}
}

// WithClientID sets the client id given to every new connection.
func WithClientID(id string) Option {
	return func(o *options) { o.clientID = id }
}

// WithCloneOnSend controls whether producers enqueue a copy of the sent
// message (the default) or the message itself.
func WithCloneOnSend(clone bool) Option {
	return func(o *options) { o.cloneOnSend = clone }
}

// WithSelectors enables or disables message selector evaluation. When
// disabled, selectors are still parsed but every message matches.
func WithSelectors(enabled bool) Option {
	return func(o *options) { o.useSelectors = enabled }
}

// WithAutoCreateDestinations makes sessions create unknown queues and topics
// on lookup instead of failing with ErrInvalidDestination.
func WithAutoCreateDestinations(auto bool) Option {
	return func(o *options) { o.autoCreate = auto }
}

// WithLogger sets the logger for lifecycle and delivery events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now for timestamps and expiration checks.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithBinder sets how delivered text messages decode their body in Bind.
func WithBinder(b Binder) Option {
	return func(o *options) {
		if b != nil {
			o.binder = b
		}
	}
}

// WithMiddleware wraps every message listener of the factory. Middleware is
// applied in registration order: the first one runs outermost.
func WithMiddleware(mws ...Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mws...) }
}
