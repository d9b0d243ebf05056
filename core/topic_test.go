package core_test

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/miladsoleymani/mockjms/core"
)

func TestTopicFanOut(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)

	a, _ := s.CreateConsumer(fx.topic)
	b, _ := s.CreateConsumer(fx.topic, core.WithSelector("level > 1"))

	p, _ := s.CreateProducer(fx.topic)
	for level := 1; level <= 2; level++ {
		msg := core.NewTextMessage("tick")
		assert.NilError(t, msg.SetProperty("level", level))
		assert.NilError(t, p.Send(ctx, msg))
	}

	assert.Equal(t, fx.topic.Subscriptions(), 2)
	assert.Assert(t, is.Len(fx.topic.ReceivedMessages(), 2))

	first, _ := a.ReceiveNoWait()
	second, _ := a.ReceiveNoWait()
	assert.Assert(t, first != nil && second != nil)
	// each subscriber gets its own copy
	assert.Assert(t, first != fx.topic.ReceivedMessages()[0])

	only, _ := b.ReceiveNoWait()
	level, _ := only.Int64Property("level")
	assert.Equal(t, level, int64(2))
	assert.Equal(t, receiveText(t, b), "")
}

func TestTopicWithoutSubscribersDropsMessages(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	send(t, s, fx.topic, "lost")

	c, _ := s.CreateConsumer(fx.topic)
	assert.Equal(t, receiveText(t, c), "")
	assert.Assert(t, is.Len(fx.topic.ReceivedMessages(), 1))

	assert.NilError(t, c.Close())
	assert.Equal(t, fx.topic.Subscriptions(), 0)
}

func TestNoLocal(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	local, _ := s.CreateConsumer(fx.topic, core.WithNoLocal())
	assert.Assert(t, local.NoLocal())

	other, err := fx.factory.CreateConnection()
	assert.NilError(t, err)
	theirs, _ := other.CreateSession(false, core.AutoAcknowledge)

	send(t, s, fx.topic, "mine")
	send(t, theirs, fx.topic, "theirs")

	assert.Equal(t, receiveText(t, local), "theirs")
	assert.Equal(t, receiveText(t, local), "")
}

func TestDurableSubscriberReceivesWhileOffline(t *testing.T) {
	fx := newFixture(t, core.WithClientID("app"))
	s := fx.session(t, false, core.AutoAcknowledge)
	dm := fx.factory.DestinationManager()

	sub, err := s.CreateDurableSubscriber(fx.topic, "audit")
	assert.NilError(t, err)
	assert.Assert(t, sub.IsDurable())
	assert.Equal(t, sub.SubscriptionName(), "audit")

	send(t, s, fx.topic, "one")
	assert.Equal(t, receiveText(t, sub), "one")

	assert.NilError(t, sub.Close())
	send(t, s, fx.topic, "two", "three")

	pending, err := dm.PendingDurable("app", "audit")
	assert.NilError(t, err)
	assert.DeepEqual(t, texts(pending), []string{"two", "three"})
	assert.DeepEqual(t, dm.DurableSubscriptions("app"), []string{"audit"})

	again, err := s.CreateDurableSubscriber(fx.topic, "audit")
	assert.NilError(t, err)
	assert.Equal(t, receiveText(t, again), "two")
	assert.Equal(t, receiveText(t, again), "three")

	_, err = s.CreateDurableSubscriber(fx.topic, "audit")
	assert.ErrorIs(t, err, core.ErrIllegalState)
	assert.ErrorIs(t, s.Unsubscribe("audit"), core.ErrIllegalState)

	assert.NilError(t, again.Close())
	assert.NilError(t, s.Unsubscribe("audit"))
	assert.Equal(t, fx.topic.Subscriptions(), 0)
	assert.ErrorIs(t, s.Unsubscribe("audit"), core.ErrInvalidDestination)
}

func TestDurableSubscriptionOutlivesConnection(t *testing.T) {
	fx := newFixture(t, core.WithClientID("app"))
	s := fx.session(t, false, core.AutoAcknowledge)
	sub, _ := s.CreateDurableSubscriber(fx.topic, "audit")
	assert.NilError(t, fx.conn.Close())
	assert.Assert(t, sub.IsClosed())

	pub, _ := fx.factory.CreateConnection()
	ps, _ := pub.CreateSession(false, core.AutoAcknowledge)
	send(t, ps, fx.topic, "while away")

	// a later connection with the same client id resumes the subscription
	assert.NilError(t, pub.Start(ctx))
	resumed, err := ps.CreateDurableSubscriber(fx.topic, "audit")
	assert.NilError(t, err)
	assert.Equal(t, receiveText(t, resumed), "while away")
}

func TestDurableResubscribeWithNewSelector(t *testing.T) {
	fx := newFixture(t, core.WithClientID("app"))
	s := fx.session(t, false, core.AutoAcknowledge)
	sub, _ := s.CreateDurableSubscriber(fx.topic, "audit")
	assert.NilError(t, sub.Close())
	send(t, s, fx.topic, "backlog")

	changed, err := s.CreateDurableSubscriber(fx.topic, "audit", core.WithSelector("urgent = TRUE"))
	assert.NilError(t, err)
	assert.Equal(t, changed.MessageSelector(), "urgent = TRUE")
	assert.Equal(t, receiveText(t, changed), "")
	assert.Equal(t, fx.topic.Subscriptions(), 1)
}

func TestDurableSubscriberRules(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	_, err := s.CreateDurableSubscriber(fx.topic, "audit")
	assert.ErrorIs(t, err, core.ErrIllegalState)

	named := newFixture(t, core.WithClientID("app"))
	ns := named.session(t, false, core.AutoAcknowledge)
	_, err = ns.CreateDurableSubscriber(named.topic, "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	tmp, err := ns.CreateTemporaryTopic()
	assert.NilError(t, err)
	_, err = ns.CreateDurableSubscriber(tmp, "audit")
	assert.ErrorIs(t, err, core.ErrInvalidDestination)
}

func TestClientID(t *testing.T) {
	f := core.NewConnectionFactory()
	c1, _ := f.CreateConnection()
	c2, _ := f.CreateConnection()

	assert.NilError(t, c1.SetClientID("a"))
	assert.Equal(t, c1.ClientID(), "a")
	assert.ErrorIs(t, c2.SetClientID("a"), core.ErrInvalidClientID)
	assert.ErrorIs(t, c2.SetClientID(""), core.ErrInvalidClientID)
	assert.ErrorIs(t, c1.SetClientID("b"), core.ErrIllegalState)

	used, _ := f.CreateConnection()
	_, err := used.CreateSession(false, core.AutoAcknowledge)
	assert.NilError(t, err)
	assert.ErrorIs(t, used.SetClientID("c"), core.ErrIllegalState)

	assert.NilError(t, c1.Close())
	assert.NilError(t, c2.SetClientID("a"))
}

func TestTemporaryQueue(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)

	tq, err := s.CreateTemporaryQueue()
	assert.NilError(t, err)
	assert.Assert(t, tq.Temporary())
	assert.Assert(t, strings.HasPrefix(tq.Name(), "TemporaryQueue-"))
	temps := fx.conn.TemporaryDestinations()
	assert.Assert(t, is.Len(temps, 1))
	assert.Equal(t, temps[0], core.Destination(tq))

	other, _ := fx.factory.CreateConnection()
	os, _ := other.CreateSession(false, core.AutoAcknowledge)
	_, err = os.CreateConsumer(tq)
	assert.ErrorIs(t, err, core.ErrInvalidDestination)

	// anyone may send to it
	send(t, os, tq, "reply")
	c, err := s.CreateConsumer(tq)
	assert.NilError(t, err)
	assert.Equal(t, receiveText(t, c), "reply")

	assert.ErrorIs(t, tq.Delete(), core.ErrIllegalState)
	assert.NilError(t, c.Close())
	assert.NilError(t, tq.Delete())
	assert.Assert(t, is.Len(fx.conn.TemporaryDestinations(), 0))

	_, err = s.CreateProducer(tq)
	assert.ErrorIs(t, err, core.ErrInvalidDestination)
	assert.ErrorIs(t, fx.queue.Delete(), core.ErrUnsupported)
}

func TestTemporaryTopicDiesWithConnection(t *testing.T) {
	f := core.NewConnectionFactory()
	conn, _ := f.CreateConnection()
	s, _ := conn.CreateSession(false, core.AutoAcknowledge)
	tt, err := s.CreateTemporaryTopic()
	assert.NilError(t, err)
	assert.Assert(t, strings.HasPrefix(tt.Name(), "TemporaryTopic-"))

	other, _ := f.CreateConnection()
	os, _ := other.CreateSession(false, core.AutoAcknowledge)
	p, _ := os.CreateProducer(nil)

	assert.NilError(t, conn.Close())
	assert.ErrorIs(t, p.SendTo(ctx, tt, core.NewMessage()), core.ErrInvalidDestination)
}
