package core_test

import (
	"context"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/miladsoleymani/mockjms/core"
)

func TestEnvelopeStringsRoundTrip(t *testing.T) {
	dm := core.NewConnectionFactory().DestinationManager()
	replies := dm.CreateTopic("replies")
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC)

	msg := core.NewStreamMessage()
	assert.NilError(t, msg.WriteString("a"))
	assert.NilError(t, msg.WriteInt64(7))
	assert.NilError(t, msg.WriteFloat64(1.5))
	msg.SetMessageID("ID:1")
	msg.SetTimestamp(ts)
	msg.SetReplyTo(replies)
	msg.SetRedelivered(true)
	assert.NilError(t, msg.SetProperty("tenant", "acme"))

	env, err := core.Encode(msg)
	assert.NilError(t, err)
	assert.Equal(t, env.Kind, core.KindStream)
	assert.Equal(t, string(env.Body), `[{"t":"string","v":"a"},{"t":"int64","v":"7"},{"t":"float64","v":"1.5"}]`)

	headers := env.Strings()
	assert.Equal(t, headers[core.HeaderKind], "stream")
	assert.Equal(t, headers[core.HeaderReplyTo], "topic://replies")
	assert.Equal(t, headers["tenant"], "acme")

	back, err := core.FromStrings(headers, env.Body)
	assert.NilError(t, err)
	decoded, err := core.Decode(back, dm)
	assert.NilError(t, err)

	stream := decoded.(*core.StreamMessage)
	stream.Reset()
	s, _ := stream.ReadString()
	n, _ := stream.ReadInt64()
	f, _ := stream.ReadFloat64()
	assert.Equal(t, s, "a")
	assert.Equal(t, n, int64(7))
	assert.Equal(t, f, 1.5)

	assert.Assert(t, decoded.Timestamp().Equal(ts))
	assert.Assert(t, decoded.Redelivered())
	assert.Equal(t, decoded.ReplyTo(), core.Destination(replies))
	assert.Equal(t, decoded.Priority(), core.DefaultPriority)
}

func TestMapAndStreamKeepValueTypes(t *testing.T) {
	m := core.NewMapMessage()
	assert.NilError(t, m.Set("price", 2.0))
	assert.NilError(t, m.Set("ratio", float32(0.1)))
	assert.NilError(t, m.Set("small", int8(-3)))
	assert.NilError(t, m.Set("medium", int16(300)))
	assert.NilError(t, m.Set("large", int32(70000)))
	assert.NilError(t, m.Set("blob", []byte{1, 2, 3}))
	assert.NilError(t, m.Set("flag", true))

	env, err := core.Encode(m)
	assert.NilError(t, err)
	decoded, err := core.Decode(env, nil)
	assert.NilError(t, err)
	back := decoded.(*core.MapMessage)

	assert.DeepEqual(t, back.Names(), []string{"price", "ratio", "small", "medium", "large", "blob", "flag"})
	price, err := back.Float64("price")
	assert.NilError(t, err)
	assert.Equal(t, price, 2.0)
	for name, want := range map[string]any{
		"price":  2.0,
		"ratio":  float32(0.1),
		"small":  int8(-3),
		"medium": int16(300),
		"large":  int32(70000),
		"flag":   true,
	} {
		got, ok := back.Get(name)
		assert.Assert(t, ok, name)
		assert.Equal(t, got, want, name)
	}
	blob, err := back.Bytes("blob")
	assert.NilError(t, err)
	assert.DeepEqual(t, blob, []byte{1, 2, 3})

	s := core.NewStreamMessage()
	assert.NilError(t, s.WriteObject(float32(1.5)))
	assert.NilError(t, s.WriteObject(int16(7)))
	assert.NilError(t, s.WriteBytes([]byte("raw")))
	assert.NilError(t, s.WriteObject(nil))

	env, err = core.Encode(s)
	assert.NilError(t, err)
	decoded, err = core.Decode(env, nil)
	assert.NilError(t, err)
	items := decoded.(*core.StreamMessage).Items()
	assert.Equal(t, len(items), 4)
	assert.Equal(t, items[0], any(float32(1.5)))
	assert.Equal(t, items[1], any(int16(7)))
	assert.DeepEqual(t, items[2], any([]byte("raw")))
	assert.Assert(t, items[3] == nil)
}

func TestDecodeDropsUnknownReplyTo(t *testing.T) {
	env := core.Envelope{Kind: core.KindText, ReplyTo: "queue://gone", Body: []byte("x")}
	msg, err := core.Decode(env, core.NewConnectionFactory().DestinationManager())
	assert.NilError(t, err)
	assert.Assert(t, msg.ReplyTo() == nil)

	msg, err = core.Decode(env, nil)
	assert.NilError(t, err)
	assert.Assert(t, msg.ReplyTo() == nil)
}

func TestDecodeErrors(t *testing.T) {
	_, err := core.Decode(core.Envelope{Kind: core.Kind(42)}, nil)
	assert.ErrorIs(t, err, core.ErrMessageFormat)

	_, err = core.Decode(core.Envelope{Kind: core.KindMap, Body: []byte("{")}, nil)
	assert.ErrorIs(t, err, core.ErrMessageFormat)

	_, err = core.Decode(core.Envelope{Kind: core.KindStream, Body: []byte(`[{"t":"int8","v":"300"}]`)}, nil)
	assert.ErrorIs(t, err, core.ErrMessageFormat)

	_, err = core.FromStrings(map[string]string{core.HeaderTimestamp: "yesterday"}, nil)
	assert.ErrorIs(t, err, core.ErrMessageFormat)
}

func TestEncodeObjectMessage(t *testing.T) {
	msg, err := core.NewObjectMessage(order{ID: "o-9", Total: 2})
	assert.NilError(t, err)
	env, err := core.Encode(msg)
	assert.NilError(t, err)

	decoded, err := core.Decode(env, nil)
	assert.NilError(t, err)
	var got order
	assert.NilError(t, decoded.(*core.ObjectMessage).Bind(&got))
	assert.Equal(t, got.ID, "o-9")
}

func TestReplyOutsideListener(t *testing.T) {
	req := core.NewTextMessage("q")
	err := core.Reply(context.Background(), req, core.NewTextMessage("a"))
	assert.ErrorIs(t, err, core.ErrIllegalState)

	_, ok := core.SessionFromContext(context.Background())
	assert.Assert(t, !ok)
}

func TestContextCarriesDelivery(t *testing.T) {
	fx := newFixture(t)
	s := fx.session(t, false, core.AutoAcknowledge)
	c, _ := s.CreateConsumer(fx.queue)

	var gotSession *core.Session
	var gotConsumer *core.Consumer
	assert.NilError(t, c.SetMessageListener(func(ctx context.Context, msg core.Message) error {
		gotSession, _ = core.SessionFromContext(ctx)
		gotConsumer, _ = core.ConsumerFromContext(ctx)
		return nil
	}))
	send(t, s, fx.queue, "x")

	assert.Assert(t, gotSession == s)
	assert.Assert(t, gotConsumer == c)
}
