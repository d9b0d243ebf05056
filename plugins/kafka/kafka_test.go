package kafka_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/miladsoleymani/mockjms/core"
	mkafka "github.com/miladsoleymani/mockjms/plugins/kafka"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

// fakeReader serves msgs in order, then cancels the pump context.
type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func TestToKafkaRoundTrip(t *testing.T) {
	t.Parallel()

	f := core.NewConnectionFactory()
	replies := f.DestinationManager().CreateQueue("replies")

	msg := core.NewTextMessage("hello")
	msg.SetMessageID("ID:1")
	msg.SetCorrelationID("corr-1")
	msg.SetReplyTo(replies)
	msg.SetPriority(7)
	assert.NilError(t, msg.SetProperty("region", "eu"))

	km, err := mkafka.ToKafka(msg, "orders")
	assert.NilError(t, err)
	assert.Equal(t, km.Topic, "orders")
	assert.Equal(t, string(km.Key), "corr-1")
	assert.Equal(t, string(km.Value), "hello")

	back, err := mkafka.FromKafka(km, f.DestinationManager())
	assert.NilError(t, err)
	text, ok := back.(*core.TextMessage)
	assert.Assert(t, ok, "expected a text message, got %T", back)
	assert.Equal(t, text.Text(), "hello")
	assert.Equal(t, back.MessageID(), "ID:1")
	assert.Equal(t, back.Priority(), 7)
	assert.Equal(t, back.ReplyTo(), core.Destination(replies))
	region, err := back.StringProperty("region")
	assert.NilError(t, err)
	assert.Equal(t, region, "eu")
}

func TestFromKafkaForeignMessage(t *testing.T) {
	t.Parallel()

	msg, err := mkafka.FromKafka(kafka.Message{Value: []byte{1, 2, 3}}, nil)
	assert.NilError(t, err)
	assert.Equal(t, msg.Kind(), core.KindBytes)
	body, err := core.Body[[]byte](msg)
	assert.NilError(t, err)
	assert.DeepEqual(t, body, []byte{1, 2, 3})
}

func TestBridgeListener(t *testing.T) {
	t.Parallel()

	f := core.NewConnectionFactory()
	q := f.DestinationManager().CreateQueue("orders")
	conn, err := f.CreateConnection()
	assert.NilError(t, err)
	s, err := conn.CreateSession(false, core.AutoAcknowledge)
	assert.NilError(t, err)
	c, err := s.CreateConsumer(q)
	assert.NilError(t, err)
	p, err := s.CreateProducer(q)
	assert.NilError(t, err)

	w := &fakeWriter{}
	bridge := mkafka.New(mkafka.WithTopicMapper(func(d core.Destination) string { return "mock." + d.Name() }))
	assert.NilError(t, c.SetMessageListener(bridge.Listener(w)))
	assert.NilError(t, conn.Start(context.Background()))

	assert.NilError(t, p.Send(context.Background(), core.NewTextMessage("a")))
	assert.NilError(t, p.Send(context.Background(), core.NewTextMessage("b")))

	assert.Equal(t, len(w.msgs), 2)
	assert.Equal(t, w.msgs[0].Topic, "mock.orders")
	assert.Equal(t, string(w.msgs[1].Value), "b")
	assert.Assert(t, q.IsEmpty())
}

func TestBridgeListenerWriteError(t *testing.T) {
	t.Parallel()

	f := core.NewConnectionFactory()
	q := f.DestinationManager().CreateQueue("orders")
	conn, _ := f.CreateConnection()
	s, _ := conn.CreateSession(false, core.AutoAcknowledge)
	c, _ := s.CreateConsumer(q)
	p, _ := s.CreateProducer(q)

	boom := errors.New("broker down")
	assert.NilError(t, c.SetMessageListener(mkafka.New().Listener(&fakeWriter{err: boom})))
	assert.NilError(t, conn.Start(context.Background()))

	err := p.Send(context.Background(), core.NewTextMessage("a"))
	assert.ErrorIs(t, err, boom)
	// the message stays in the mock for redelivery
	assert.Equal(t, q.Len(), 1)
}

func TestBridgePump(t *testing.T) {
	t.Parallel()

	f := core.NewConnectionFactory()
	q := f.DestinationManager().CreateQueue("inbound")
	conn, _ := f.CreateConnection()
	s, _ := conn.CreateSession(false, core.AutoAcknowledge)
	p, err := s.CreateProducer(q)
	assert.NilError(t, err)

	src := core.NewTextMessage("from kafka")
	km, err := mkafka.ToKafka(src, "inbound")
	assert.NilError(t, err)
	km.Offset = 41
	foreign := kafka.Message{Offset: 42, Value: []byte("raw")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{msgs: []kafka.Message{km, foreign}, cancel: cancel}

	assert.NilError(t, mkafka.New().Pump(ctx, r, p))
	assert.DeepEqual(t, r.committed, []int64{41, 42})

	msgs := q.Messages()
	assert.Equal(t, len(msgs), 2)
	assert.Equal(t, msgs[0].(*core.TextMessage).Text(), "from kafka")
	assert.Equal(t, msgs[1].Kind(), core.KindBytes)
}

func TestBridgePumpCommitsWhenListenerFails(t *testing.T) {
	t.Parallel()

	f := core.NewConnectionFactory()
	q := f.DestinationManager().CreateQueue("inbound")
	conn, _ := f.CreateConnection()
	s, _ := conn.CreateSession(false, core.AutoAcknowledge)
	c, _ := s.CreateConsumer(q)
	p, _ := s.CreateProducer(q)
	assert.NilError(t, c.SetMessageListener(func(context.Context, core.Message) error {
		return errors.New("downstream down")
	}))
	assert.NilError(t, conn.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		msgs:   []kafka.Message{{Offset: 5, Value: []byte("a")}, {Offset: 6, Value: []byte("b")}},
		cancel: cancel,
	}

	assert.NilError(t, mkafka.New().Pump(ctx, r, p))
	assert.DeepEqual(t, r.committed, []int64{5, 6})
	assert.Equal(t, q.Len(), 2)
}

func TestBridgePumpStopsOnRejection(t *testing.T) {
	t.Parallel()

	f := core.NewConnectionFactory()
	q := f.DestinationManager().CreateQueue("inbound")
	conn, _ := f.CreateConnection()
	s, _ := conn.CreateSession(false, core.AutoAcknowledge)
	p, _ := s.CreateProducer(q)
	assert.NilError(t, p.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		msgs:   []kafka.Message{{Offset: 9, Value: []byte("a")}, {Offset: 10, Value: []byte("b")}},
		cancel: cancel,
	}

	err := mkafka.New().Pump(ctx, r, p)
	assert.ErrorIs(t, err, core.ErrIllegalState)
	assert.ErrorContains(t, err, "offset 9")
	assert.Assert(t, is.Len(r.committed, 0))
	assert.Assert(t, is.Len(r.msgs, 1))
}

func TestBridgeReaderConfig(t *testing.T) {
	t.Parallel()

	b := mkafka.New(mkafka.WithMaxBytes(1024), mkafka.WithStartOffset(kafka.FirstOffset))
	cfg := b.ReaderConfig([]string{"localhost:9092"}, "orders", "")
	assert.Equal(t, cfg.MaxBytes, 1024)
	assert.Equal(t, cfg.StartOffset, kafka.FirstOffset)

	w, err := b.NewWriter("localhost:9092")
	assert.NilError(t, err)
	assert.Equal(t, w.BatchSize, 100)
	assert.Equal(t, w.RequiredAcks, kafka.RequireAll)

	_, err = b.NewWriter()
	assert.ErrorContains(t, err, "at least one broker")
}
