package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/miladsoleymani/mockjms/core"
	"github.com/miladsoleymani/mockjms/internal/mock"
)

var ctx = context.Background()

type fixture struct {
	factory *core.ConnectionFactory
	conn    *core.Connection
	queue   *core.Queue
	topic   *core.Topic
}

// newFixture returns a started connection with a queue "orders" and a topic
// "prices".
func newFixture(t *testing.T, opts ...core.Option) fixture {
	t.Helper()
	f := core.NewConnectionFactory(opts...)
	q := f.DestinationManager().CreateQueue("orders")
	tp := f.DestinationManager().CreateTopic("prices")
	conn, err := f.CreateConnection()
	assert.NilError(t, err)
	assert.NilError(t, conn.Start(ctx))
	t.Cleanup(func() { conn.Close() })
	return fixture{factory: f, conn: conn, queue: q, topic: tp}
}

func (fx fixture) session(t *testing.T, transacted bool, mode core.AckMode) *core.Session {
	t.Helper()
	s, err := fx.conn.CreateSession(transacted, mode)
	assert.NilError(t, err)
	return s
}

func send(t *testing.T, s *core.Session, dest core.Destination, texts ...string) {
	t.Helper()
	p, err := s.CreateProducer(dest)
	assert.NilError(t, err)
	for _, text := range texts {
		assert.NilError(t, p.Send(ctx, core.NewTextMessage(text)))
	}
}

func receiveText(t *testing.T, c *core.Consumer) string {
	t.Helper()
	msg, err := c.ReceiveNoWait()
	assert.NilError(t, err)
	if msg == nil {
		return ""
	}
	return msg.(*core.TextMessage).Text()
}

func texts(msgs []core.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.(*core.TextMessage).Text()
	}
	return out
}

func TestQueueFIFO(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	send(t, s, fx.queue, "a", "b", "c")

	c, err := s.CreateConsumer(fx.queue)
	assert.NilError(t, err)
	assert.Equal(t, receiveText(t, c), "a")
	assert.Equal(t, receiveText(t, c), "b")
	assert.Equal(t, receiveText(t, c), "c")
	assert.Equal(t, receiveText(t, c), "")

	assert.Assert(t, fx.queue.IsEmpty())
	assert.DeepEqual(t, texts(fx.queue.ReceivedMessages()), []string{"a", "b", "c"})
}

func TestSendSetsHeaders(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	p, err := s.CreateProducer(fx.queue)
	assert.NilError(t, err)

	msg := core.NewTextMessage("x")
	assert.NilError(t, p.Send(ctx, msg, core.WithPriority(9), core.WithDeliveryMode(core.NonPersistent)))
	assert.Assert(t, is.Contains(msg.MessageID(), "ID:"))
	assert.Assert(t, !msg.Timestamp().IsZero())
	assert.Equal(t, msg.Priority(), 9)
	assert.Equal(t, msg.Destination(), core.Destination(fx.queue))

	// the queue holds a copy
	queued := fx.queue.Messages()[0]
	assert.Equal(t, queued.MessageID(), msg.MessageID())
	assert.NilError(t, msg.SetText("changed"))
	assert.Equal(t, queued.(*core.TextMessage).Text(), "x")

	assert.ErrorIs(t, p.Send(ctx, core.NewMessage(), core.WithPriority(10)), core.ErrInvalidArgument)

	p.SetDisableMessageID(true)
	anon := core.NewMessage()
	assert.NilError(t, p.Send(ctx, anon))
	assert.Equal(t, anon.MessageID(), "")
}

func TestProducerDestinationRules(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)

	bound, err := s.CreateProducer(fx.queue)
	assert.NilError(t, err)
	assert.ErrorIs(t, bound.SendTo(ctx, fx.topic, core.NewMessage()), core.ErrUnsupported)

	anon, err := s.CreateProducer(nil)
	assert.NilError(t, err)
	assert.ErrorIs(t, anon.Send(ctx, core.NewMessage()), core.ErrUnsupported)
	assert.NilError(t, anon.SendTo(ctx, fx.queue, core.NewMessage()))
	assert.Equal(t, fx.queue.Len(), 1)

	foreign := core.NewConnectionFactory().DestinationManager().CreateQueue("orders")
	assert.ErrorIs(t, anon.SendTo(ctx, foreign, core.NewMessage()), core.ErrInvalidDestination)
}

func TestClientAcknowledgeIsCumulative(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.ClientAcknowledge)
	send(t, s, fx.queue, "1", "2", "3")
	c, _ := s.CreateConsumer(fx.queue)

	first, _ := c.ReceiveNoWait()
	second, _ := c.ReceiveNoWait()
	assert.Assert(t, is.Len(s.Unacknowledged(), 2))

	// acknowledging the second message covers the first too
	assert.NilError(t, second.Acknowledge())
	assert.Assert(t, first.Acknowledged())
	assert.Assert(t, second.Acknowledged())
	assert.Assert(t, is.Len(s.Unacknowledged(), 0))

	third, _ := c.ReceiveNoWait()
	assert.Assert(t, !third.Acknowledged())
	assert.NilError(t, s.Recover(ctx))
	assert.Equal(t, s.Recovers(), 1)

	again, _ := c.ReceiveNoWait()
	assert.Equal(t, again.(*core.TextMessage).Text(), "3")
	assert.Assert(t, again.Redelivered())
}

func TestTransactedSendInvisibleUntilCommit(t *testing.T) {
	fx := newFixture(t)
	tx := fx.session(t, true, core.AutoAcknowledge)
	assert.Equal(t, tx.AckMode(), core.SessionTransacted)

	send(t, tx, fx.queue, "a", "b")
	assert.Assert(t, fx.queue.IsEmpty())

	assert.NilError(t, tx.Commit(ctx))
	assert.DeepEqual(t, texts(fx.queue.Messages()), []string{"a", "b"})
	assert.Equal(t, tx.Commits(), 1)

	send(t, tx, fx.queue, "dropped")
	assert.NilError(t, tx.Rollback(ctx))
	assert.Equal(t, fx.queue.Len(), 2)
	assert.Equal(t, tx.Rollbacks(), 1)
}

func TestRollbackRestoresOrder(t *testing.T) {
	fx := newFixture(t)
	plain := fx.session(t, false, core.AutoAcknowledge)
	send(t, plain, fx.queue, "1", "2", "3", "4")

	tx := fx.session(t, true, core.SessionTransacted)
	c, _ := tx.CreateConsumer(fx.queue)
	assert.Equal(t, receiveText(t, c), "1")
	assert.Equal(t, receiveText(t, c), "2")
	assert.Equal(t, receiveText(t, c), "3")
	assert.NilError(t, tx.Rollback(ctx))

	msgs := fx.queue.Messages()
	assert.DeepEqual(t, texts(msgs), []string{"1", "2", "3", "4"})
	assert.Assert(t, msgs[0].Redelivered())
	assert.Assert(t, !msgs[3].Redelivered())

	assert.Equal(t, receiveText(t, c), "1")
	assert.NilError(t, tx.Commit(ctx))
	assert.DeepEqual(t, texts(fx.queue.Messages()), []string{"2", "3", "4"})
}

func TestUncommittedReceivesStayQueued(t *testing.T) {
	fx := newFixture(t)
	plain := fx.session(t, false, core.AutoAcknowledge)
	send(t, plain, fx.queue, "a", "b")

	tx := fx.session(t, true, core.SessionTransacted)
	c, _ := tx.CreateConsumer(fx.queue)
	assert.Equal(t, receiveText(t, c), "a")

	// received but not committed: still in the queue, not handed out again
	assert.Equal(t, fx.queue.Len(), 2)
	assert.DeepEqual(t, texts(fx.queue.Messages()), []string{"a", "b"})
	b, _ := plain.CreateBrowser(fx.queue)
	browsed, err := b.Browse()
	assert.NilError(t, err)
	assert.DeepEqual(t, texts(browsed), []string{"b"})
	other, _ := plain.CreateConsumer(fx.queue)
	assert.Equal(t, receiveText(t, other), "b")
	assert.Equal(t, fx.queue.Len(), 1)

	assert.NilError(t, tx.Commit(ctx))
	assert.Assert(t, fx.queue.IsEmpty())
}

func TestUnacknowledgedReceivesStayQueued(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.ClientAcknowledge)
	send(t, s, fx.queue, "1", "2")
	c, _ := s.CreateConsumer(fx.queue)

	assert.Equal(t, receiveText(t, c), "1")
	assert.Equal(t, fx.queue.Len(), 2)
	assert.Equal(t, receiveText(t, c), "2")
	assert.Equal(t, receiveText(t, c), "")
	assert.Equal(t, fx.queue.Len(), 2)

	assert.NilError(t, s.Acknowledge())
	assert.Assert(t, fx.queue.IsEmpty())
}

type prefixBinder struct{}

func (prefixBinder) Bind(data []byte, v any) error {
	*v.(*string) = "raw:" + string(data)
	return nil
}

func TestDeliveredTextUsesFactoryBinder(t *testing.T) {
	fx := newFixture(t, core.WithBinder(prefixBinder{}))
	s := fx.session(t, false, core.AutoAcknowledge)
	send(t, s, fx.queue, "hello")
	c, _ := s.CreateConsumer(fx.queue)

	msg, err := c.ReceiveNoWait()
	assert.NilError(t, err)
	var got string
	assert.NilError(t, msg.(*core.TextMessage).Bind(&got))
	assert.Equal(t, got, "raw:hello")

	// undelivered messages decode JSON
	assert.NilError(t, core.NewTextMessage(`"plain"`).Bind(&got))
	assert.Equal(t, got, "plain")
}

func TestTransactionErrors(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	assert.ErrorIs(t, s.Commit(ctx), core.ErrIllegalState)
	assert.ErrorIs(t, s.Rollback(ctx), core.ErrIllegalState)

	tx := fx.session(t, true, core.SessionTransacted)
	assert.ErrorIs(t, tx.Recover(ctx), core.ErrIllegalState)

	_, err := fx.conn.CreateSession(false, core.SessionTransacted)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestClosedSessionFails(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.ClientAcknowledge)
	send(t, s, fx.queue, "kept")
	p, _ := s.CreateProducer(fx.queue)
	c, _ := s.CreateConsumer(fx.queue)
	_, _ = c.ReceiveNoWait()

	assert.NilError(t, s.Close())
	assert.NilError(t, s.Close())
	assert.Assert(t, s.IsClosed())
	assert.Assert(t, c.IsClosed())
	assert.Assert(t, p.IsClosed())

	// the unacknowledged message went back to the queue
	assert.Equal(t, fx.queue.Len(), 1)

	assert.ErrorIs(t, p.Send(ctx, core.NewMessage()), core.ErrIllegalState)
	_, err := c.ReceiveNoWait()
	assert.ErrorIs(t, err, core.ErrIllegalState)
	_, err = s.CreateConsumer(fx.queue)
	assert.ErrorIs(t, err, core.ErrIllegalState)
	_, err = s.CreateTextMessage("x")
	assert.ErrorIs(t, err, core.ErrIllegalState)
	assert.ErrorIs(t, s.Acknowledge(), core.ErrIllegalState)
}

func TestListenerDelivery(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	send(t, s, fx.queue, "early")

	c, _ := s.CreateConsumer(fx.queue)
	var l mock.Listener
	assert.NilError(t, c.SetMessageListener(l.Handle))
	send(t, s, fx.queue, "late")

	assert.DeepEqual(t, l.Texts(), []string{"early", "late"})
	for _, msg := range l.Received() {
		assert.Assert(t, msg.Acknowledged())
	}

	_, err := c.ReceiveNoWait()
	assert.ErrorIs(t, err, core.ErrIllegalState)
}

func TestListenerErrorRedelivers(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	c, _ := s.CreateConsumer(fx.queue)

	l := mock.Listener{Err: errors.New("transient"), FailFirst: 1}
	assert.NilError(t, c.SetMessageListener(l.Handle))

	p, _ := s.CreateProducer(fx.queue)
	err := p.Send(ctx, core.NewTextMessage("job"))
	assert.Assert(t, err != nil)
	assert.Equal(t, fx.queue.Len(), 1)

	// the next dispatch delivers it again, flagged as redelivered
	assert.NilError(t, c.SetMessageListener(l.Handle))
	assert.Equal(t, l.Calls(), 2)
	received := l.Received()
	assert.Assert(t, is.Len(received, 1))
	assert.Assert(t, received[0].Redelivered())
	assert.Assert(t, fx.queue.IsEmpty())
}

func TestDispatchJoinsListenerErrors(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	boom := errors.New("boom")
	c, _ := s.CreateConsumer(fx.queue)
	assert.NilError(t, c.SetMessageListener(func(context.Context, core.Message) error { return boom }))

	p, _ := s.CreateProducer(fx.queue)
	err := p.Send(ctx, core.NewTextMessage("x"))
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "listener on orders")

	// the message was routed, only its listener failed
	var le *core.ListenerError
	assert.Assert(t, errors.As(err, &le))
	assert.Equal(t, le.Destination, "orders")
	assert.Assert(t, le.MessageID != "")
	assert.Assert(t, core.Routed(err))
	assert.Equal(t, fx.queue.Len(), 1)

	assert.NilError(t, p.Close())
	err = p.Send(ctx, core.NewTextMessage("y"))
	assert.ErrorIs(t, err, core.ErrIllegalState)
	assert.Assert(t, !core.Routed(err))
	assert.Assert(t, core.Routed(nil))
}

func TestListenerPanicRedelivers(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	c, _ := s.CreateConsumer(fx.queue)
	calls := 0
	assert.NilError(t, c.SetMessageListener(func(context.Context, core.Message) error {
		calls++
		if calls == 1 {
			panic("first delivery")
		}
		return nil
	}))

	p, _ := s.CreateProducer(fx.queue)
	err := p.Send(ctx, core.NewTextMessage("job"))
	assert.ErrorContains(t, err, "listener panic: first delivery")
	assert.Assert(t, core.Routed(err))
	msgs := fx.queue.Messages()
	assert.Assert(t, is.Len(msgs, 1))
	assert.Assert(t, msgs[0].Redelivered())

	// delivery still works after the panic
	send(t, s, fx.queue, "next")
	assert.Equal(t, calls, 3)
	assert.Assert(t, fx.queue.IsEmpty())
}

func TestBrowser(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	p, _ := s.CreateProducer(fx.queue)
	for _, color := range []string{"red", "blue", "red"} {
		msg := core.NewTextMessage(color)
		assert.NilError(t, msg.SetProperty("color", color))
		assert.NilError(t, p.Send(ctx, msg))
	}

	b, err := s.CreateBrowser(fx.queue, core.WithSelector("color = 'red'"))
	assert.NilError(t, err)
	assert.Equal(t, b.MessageSelector(), "color = 'red'")
	msgs, err := b.Browse()
	assert.NilError(t, err)
	assert.DeepEqual(t, texts(msgs), []string{"red", "red"})
	assert.ErrorIs(t, msgs[0].SetProperty("x", 1), core.ErrMessageNotWriteable)

	// browsing consumes nothing
	assert.Equal(t, fx.queue.Len(), 3)

	assert.NilError(t, b.Close())
	_, err = b.Browse()
	assert.ErrorIs(t, err, core.ErrIllegalState)

	_, err = s.CreateBrowser(fx.queue, core.WithSelector("color ="))
	assert.ErrorIs(t, err, core.ErrInvalidSelector)
}

func TestQueueSelectorSkipsMessages(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	p, _ := s.CreateProducer(fx.queue)
	for i, region := range []string{"us", "eu", "us"} {
		msg := core.NewTextMessage(region)
		assert.NilError(t, msg.SetProperty("n", i))
		assert.NilError(t, msg.SetProperty("region", region))
		assert.NilError(t, p.Send(ctx, msg))
	}

	eu, _ := s.CreateConsumer(fx.queue, core.WithSelector("region = 'eu'"))
	assert.Equal(t, receiveText(t, eu), "eu")
	assert.Equal(t, receiveText(t, eu), "")
	assert.DeepEqual(t, texts(fx.queue.Messages()), []string{"us", "us"})
}

func TestSelectorsDisabled(t *testing.T) {
	fx := newFixture(t, core.WithSelectors(false))
	s := fx.session(t, false, core.AutoAcknowledge)
	send(t, s, fx.queue, "any")

	c, err := s.CreateConsumer(fx.queue, core.WithSelector("region = 'eu'"))
	assert.NilError(t, err)
	assert.Equal(t, c.MessageSelector(), "region = 'eu'")
	assert.Equal(t, receiveText(t, c), "any")
}

func TestExpiredMessagesAreDropped(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	fx := newFixture(t, core.WithClock(clock))
	s := fx.session(t, false, core.AutoAcknowledge)
	p, _ := s.CreateProducer(fx.queue)

	assert.NilError(t, p.Send(ctx, core.NewTextMessage("short"), core.WithTimeToLive(time.Second)))
	assert.NilError(t, p.Send(ctx, core.NewTextMessage("long"), core.WithTimeToLive(time.Hour)))

	now = now.Add(time.Minute)
	c, _ := s.CreateConsumer(fx.queue)
	assert.Equal(t, receiveText(t, c), "long")
	assert.Assert(t, fx.queue.IsEmpty())
}
