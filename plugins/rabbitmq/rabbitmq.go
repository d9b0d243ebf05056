package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/miladsoleymani/mockjms/core"
)

// Publisher is the part of *amqp.Channel the bridge publishes with.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Declarer is the part of *amqp.Channel used to declare queues.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// Bridge moves messages between the mock and RabbitMQ.
//
// Design decisions:
//   - The bridge never dials. Callers own the connection and channel.
//   - Inbound deliveries are acked once the mock accepted them and nacked
//     otherwise, requeued unless disabled.
//   - Context cancellation or a closed delivery channel ends Consume.
type Bridge struct {
	opts options
}

// New creates a RabbitMQ Bridge.
func New(fns ...Option) *Bridge {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Bridge{opts: opts}
}

// Listener returns a core.Listener publishing every delivered message to
// the configured exchange.
func (b *Bridge) Listener(pub Publisher) core.Listener {
	return func(ctx context.Context, msg core.Message) error {
		key := b.opts.routingKey(msg.Destination())
		p, err := ToPublishing(msg)
		if err != nil {
			return err
		}
		if err := pub.PublishWithContext(ctx, b.opts.exchange, key, false, false, p); err != nil {
			return fmt.Errorf("mockjms/rabbitmq: publish to %q: %w", key, err)
		}
		b.opts.logger.Debug("forwarded to rabbitmq",
			zap.String("exchange", b.opts.exchange),
			zap.String("routing_key", key),
			zap.String("message_id", msg.MessageID()),
		)
		return nil
	}
}

// Declare declares the queue a destination maps to with the bridge's queue
// settings.
func (b *Bridge) Declare(ch Declarer, dest core.Destination) (amqp.Queue, error) {
	name := b.opts.routingKey(dest)
	q, err := ch.QueueDeclare(name, b.opts.durable, b.opts.autoDelete, b.opts.exclusive, false, b.queueArgs())
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("mockjms/rabbitmq: declare queue %q: %w", name, err)
	}
	return q, nil
}

func (b *Bridge) queueArgs() amqp.Table {
	if b.opts.queueTTL <= 0 {
		return nil
	}
	return amqp.Table{"x-message-ttl": b.opts.queueTTL}
}

// Consume sends every delivery through p until ctx is cancelled or the
// channel closes. Deliveries must come from a consumer with autoAck off. A
// delivery is acked once the mock routed it and nacked when the mock
// rejected it.
func (b *Bridge) Consume(ctx context.Context, deliveries <-chan amqp.Delivery, p *core.Producer) error {
	dm := p.Session().Connection().Factory().DestinationManager()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil // channel closed
			}
			if err := b.handle(ctx, d, dm, p); err != nil {
				b.opts.logger.Warn("delivery rejected",
					zap.String("routing_key", d.RoutingKey),
					zap.Uint64("delivery_tag", d.DeliveryTag),
					zap.Error(err),
				)
				if nackErr := d.Nack(false, b.opts.requeueOnNack); nackErr != nil {
					return fmt.Errorf("mockjms/rabbitmq: nack: %w", nackErr)
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				return fmt.Errorf("mockjms/rabbitmq: ack: %w", err)
			}
		}
	}
}

// handle fails only when the mock did not route the delivery. Listener
// failures inside the mock are logged; the mock redelivers on its own.
func (b *Bridge) handle(ctx context.Context, d amqp.Delivery, dm *core.DestinationManager, p *core.Producer) error {
	msg, err := FromDelivery(d, dm)
	if err != nil {
		return err
	}
	err = p.Send(ctx, msg)
	if !core.Routed(err) {
		return err
	}
	if err != nil {
		b.opts.logger.Warn("listener failed on consumed delivery",
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.String("message_id", msg.MessageID()),
			zap.Error(err),
		)
	}
	return nil
}
