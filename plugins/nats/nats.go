package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/miladsoleymani/mockjms/core"
)

// Publisher sends NATS messages. Use Core or JetStream to adapt a client.
type Publisher interface {
	Publish(ctx context.Context, msg *nats.Msg) error
}

// CorePublisher is the part of *nats.Conn the bridge uses.
type CorePublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// JetStreamPublisher is the part of jetstream.JetStream the bridge uses.
type JetStreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamMsg is the part of jetstream.Msg the bridge uses.
type JetStreamMsg interface {
	Data() []byte
	Headers() nats.Header
	Ack() error
	Nak() error
}

type corePublisher struct{ nc CorePublisher }

func (p corePublisher) Publish(_ context.Context, msg *nats.Msg) error { return p.nc.PublishMsg(msg) }

// Core adapts a core NATS connection.
func Core(nc CorePublisher) Publisher { return corePublisher{nc} }

type jsPublisher struct{ js JetStreamPublisher }

func (p jsPublisher) Publish(ctx context.Context, msg *nats.Msg) error {
	_, err := p.js.PublishMsg(ctx, msg)
	return err
}

// JetStream adapts a JetStream context; publishes wait for the stream ack.
func JetStream(js JetStreamPublisher) Publisher { return jsPublisher{js} }

// Bridge moves messages between the mock and NATS.
//
// Design decisions:
//   - The bridge never connects. Callers pass clients, so tests use fakes.
//   - JetStream deliveries are acked once the mock accepted them and naked
//     otherwise, so the server redelivers up to MaxDeliver times.
type Bridge struct {
	opts options
}

// New creates a NATS Bridge.
func New(fns ...Option) *Bridge {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Bridge{opts: opts}
}

// Listener returns a core.Listener publishing every delivered message.
func (b *Bridge) Listener(pub Publisher) core.Listener {
	return func(ctx context.Context, msg core.Message) error {
		subject := b.opts.subject(msg.Destination())
		nm, err := ToNATS(msg, subject)
		if err != nil {
			return err
		}
		if err := pub.Publish(ctx, nm); err != nil {
			return fmt.Errorf("mockjms/nats: publish to %q: %w", subject, err)
		}
		b.opts.logger.Debug("forwarded to nats",
			zap.String("subject", subject),
			zap.String("message_id", msg.MessageID()),
		)
		return nil
	}
}

// Ingest sends a JetStream message through p. The message is acked once the
// mock routed it, even when a listener inside the mock then fails: that
// failure is logged and the mock redelivers the message itself. A message
// the mock cannot decode or route is naked.
func (b *Bridge) Ingest(ctx context.Context, m JetStreamMsg, p *core.Producer) error {
	dm := p.Session().Connection().Factory().DestinationManager()
	msg, err := FromJetStream(m, dm)
	if err == nil {
		err = p.Send(ctx, msg)
	}
	if !core.Routed(err) {
		if nakErr := m.Nak(); nakErr != nil {
			return fmt.Errorf("mockjms/nats: nack: %w", nakErr)
		}
		return fmt.Errorf("mockjms/nats: ingest: %w", err)
	}
	if err != nil {
		b.opts.logger.Warn("listener failed on ingested message",
			zap.String("message_id", msg.MessageID()),
			zap.Error(err),
		)
	}
	if err := m.Ack(); err != nil {
		return fmt.Errorf("mockjms/nats: ack: %w", err)
	}
	return nil
}

// Handler returns a jetstream.MessageHandler for Consumer.Consume that
// ingests every message through p.
func (b *Bridge) Handler(ctx context.Context, p *core.Producer) jetstream.MessageHandler {
	return func(m jetstream.Msg) {
		if err := b.Ingest(ctx, m, p); err != nil {
			b.opts.logger.Warn("jetstream message rejected", zap.String("subject", m.Subject()), zap.Error(err))
		}
	}
}

// StreamConfig returns the stream configuration for subject, for use with
// CreateOrUpdateStream.
func (b *Bridge) StreamConfig(subject string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:      sanitizeStreamName(subject),
		Subjects:  []string{subject},
		MaxMsgs:   b.opts.maxMsgs,
		MaxBytes:  b.opts.maxBytes,
		MaxAge:    b.opts.maxAge,
		Replicas:  b.opts.replicas,
		Retention: b.opts.retention,
		Storage:   b.opts.storage,
	}
}

// ConsumerConfig returns a durable, explicitly acked consumer configuration.
// An empty name derives one from subject.
func (b *Bridge) ConsumerConfig(name, subject string) jetstream.ConsumerConfig {
	if name == "" {
		name = "mockjms-" + sanitizeStreamName(subject)
	}
	return jetstream.ConsumerConfig{
		Durable:    name,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    b.opts.ackWait,
		MaxDeliver: b.opts.maxDeliver,
	}
}

// sanitizeStreamName converts a subject pattern to a valid stream name
// by replacing special characters.
func sanitizeStreamName(subject string) string {
	buf := make([]byte, len(subject))
	for i := range len(subject) {
		c := subject[i]
		if c == '.' || c == '*' || c == '>' {
			buf[i] = '-'
		} else {
			buf[i] = c
		}
	}
	return string(buf)
}
