package rabbitmq

import (
	"go.uber.org/zap"

	"github.com/miladsoleymani/mockjms/core"
)

// Option configures the RabbitMQ bridge.
type Option func(*options)

type options struct {
	// Exchange settings
	exchange   string
	routingKey func(core.Destination) string

	// Queue settings
	durable    bool
	autoDelete bool
	exclusive  bool
	queueTTL   int64 // milliseconds, 0 for none

	// Consumer settings
	requeueOnNack bool

	logger *zap.Logger
}

func defaults() options {
	return options{
		exchange:      "", // default exchange routes by queue name
		routingKey:    destinationName,
		durable:       true,
		requeueOnNack: true,
		logger:        zap.NewNop(),
	}
}

func destinationName(d core.Destination) string {
	if d == nil {
		return ""
	}
	return d.Name()
}

// WithExchange sets the exchange messages are published to.
func WithExchange(name string) Option {
	return func(o *options) { o.exchange = name }
}

// WithRoutingKey chooses the routing key for a mock destination. By default
// the destination name is used.
func WithRoutingKey(fn func(core.Destination) string) Option {
	return func(o *options) { o.routingKey = fn }
}

// WithDurable controls whether declared queues survive broker restart.
func WithDurable(d bool) Option {
	return func(o *options) { o.durable = d }
}

// WithAutoDelete causes the queue to be deleted when the last consumer disconnects.
func WithAutoDelete(d bool) Option {
	return func(o *options) { o.autoDelete = d }
}

// WithExclusive restricts declared queues to the declaring connection.
func WithExclusive(e bool) Option {
	return func(o *options) { o.exclusive = e }
}

// WithQueueTTL sets the x-message-ttl argument of declared queues.
func WithQueueTTL(ms int64) Option {
	return func(o *options) { o.queueTTL = ms }
}

// WithRequeueOnNack controls whether rejected deliveries are requeued.
func WithRequeueOnNack(requeue bool) Option {
	return func(o *options) { o.requeueOnNack = requeue }
}

// WithLogger sets the bridge logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}
