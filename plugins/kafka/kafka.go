package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/miladsoleymani/mockjms/core"
)

// Writer is the part of *kafka.Writer the bridge uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Reader is the part of *kafka.Reader the bridge uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Bridge moves messages between the mock and Kafka: Listener forwards
// messages delivered by the mock to a Writer, Pump feeds messages fetched
// from a Reader into the mock.
//
// Design decisions:
//   - The bridge never dials. It works on caller-supplied clients, so tests
//     can use fakes and applications can pass a *kafka.Writer or *kafka.Reader.
//   - Manual offset commit: a fetched message is committed only once the mock
//     routed it. A rejected message stops the pump before its offset, or any
//     later one, is committed.
type Bridge struct {
	opts options
}

// New creates a Kafka Bridge.
func New(fns ...Option) *Bridge {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Bridge{opts: opts}
}

// NewWriter builds a *kafka.Writer for brokers from the bridge options. The
// writer connects lazily on its first write.
func (b *Bridge) NewWriter(brokers ...string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("mockjms/kafka: at least one broker address is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     b.opts.balancer,
		BatchSize:    b.opts.batchSize,
		Async:        b.opts.async,
		RequiredAcks: kafka.RequireAll,
	}
	if b.opts.dialer != nil {
		w.Transport = &kafka.Transport{
			TLS:  b.opts.dialer.TLS,
			SASL: b.opts.dialer.SASLMechanism,
		}
	}
	return w, nil
}

// ReaderConfig returns the reader configuration for topic and consumer
// group, for use with kafka.NewReader.
func (b *Bridge) ReaderConfig(brokers []string, topic, group string) kafka.ReaderConfig {
	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: b.opts.minBytes,
		MaxBytes: b.opts.maxBytes,
		MaxWait:  b.opts.maxWait,
	}
	if b.opts.dialer != nil {
		cfg.Dialer = b.opts.dialer
	}
	if group == "" {
		cfg.StartOffset = b.opts.startOffset
	}
	return cfg
}

// Listener returns a core.Listener that writes every delivered message to
// w, on the topic chosen by the topic mapper.
func (b *Bridge) Listener(w Writer) core.Listener {
	return func(ctx context.Context, msg core.Message) error {
		topic := b.opts.topic(msg.Destination())
		km, err := ToKafka(msg, topic)
		if err != nil {
			return err
		}
		if err := w.WriteMessages(ctx, km); err != nil {
			return fmt.Errorf("mockjms/kafka: publish to %q: %w", topic, err)
		}
		b.opts.logger.Debug("forwarded to kafka",
			zap.String("topic", topic),
			zap.String("message_id", msg.MessageID()),
		)
		return nil
	}
}

// Pump fetches messages from r and sends them through p until ctx is done.
// Offsets are committed once the mock routed the message, including when a
// listener inside the mock fails on it. A message the mock rejects ends the
// pump uncommitted: Kafka commits the highest offset of a partition, so
// carrying on past it would commit the rejected message too.
func (b *Bridge) Pump(ctx context.Context, r Reader, p *core.Producer) error {
	dm := p.Session().Connection().Factory().DestinationManager()
	for {
		raw, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil // graceful shutdown
			}
			return fmt.Errorf("mockjms/kafka: fetch: %w", err)
		}

		msg, err := FromKafka(raw, dm)
		if err != nil {
			return fmt.Errorf("mockjms/kafka: decode offset %d: %w", raw.Offset, err)
		}
		err = p.Send(ctx, msg)
		if !core.Routed(err) {
			return fmt.Errorf("mockjms/kafka: send offset %d: %w", raw.Offset, err)
		}
		if err != nil {
			b.opts.logger.Warn("listener failed on pumped message",
				zap.String("topic", raw.Topic),
				zap.Int64("offset", raw.Offset),
				zap.Error(err),
			)
		}
		if err := r.CommitMessages(ctx, raw); err != nil {
			return fmt.Errorf("mockjms/kafka: commit offset: %w", err)
		}
	}
}
