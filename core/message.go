package core

import (
	"fmt"
	"time"
)

// Kind identifies the body variant of a Message.
type Kind int

const (
	KindBasic Kind = iota
	KindText
	KindBytes
	KindMap
	KindObject
	KindStream
)

var kindNames = [...]string{"basic", "text", "bytes", "map", "object", "stream"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return KindBasic, fmt.Errorf("%w: unknown message kind %q", ErrInvalidArgument, s)
}

// DeliveryMode uses the numeric values of the messaging API it mocks.
type DeliveryMode int

const (
	NonPersistent DeliveryMode = 1
	Persistent    DeliveryMode = 2
)

func (d DeliveryMode) String() string {
	if d == NonPersistent {
		return "NON_PERSISTENT"
	}
	return "PERSISTENT"
}

// DefaultPriority is assigned to messages that never had a priority set.
const DefaultPriority = 4

// Message is the common view of every message variant: header fields, an
// ordered property bag and an acknowledgment hook.
//
// Concrete variants are *BasicMessage, *TextMessage, *BytesMessage,
// *MapMessage, *ObjectMessage and *StreamMessage.
type Message interface {
	Kind() Kind

	MessageID() string
	SetMessageID(id string)
	Timestamp() time.Time
	SetTimestamp(t time.Time)
	CorrelationID() string
	SetCorrelationID(id string)
	ReplyTo() Destination
	SetReplyTo(d Destination)
	Destination() Destination
	SetDestination(d Destination)
	DeliveryMode() DeliveryMode
	SetDeliveryMode(m DeliveryMode)
	Redelivered() bool
	SetRedelivered(b bool)
	Type() string
	SetType(t string)
	Expiration() time.Time
	SetExpiration(t time.Time)
	Priority() int
	SetPriority(p int)

	SetProperty(name string, val any) error
	Property(name string) (any, bool)
	PropertyExists(name string) bool
	PropertyNames() []string
	BoolProperty(name string) (bool, error)
	Int32Property(name string) (int32, error)
	Int64Property(name string) (int64, error)
	Float64Property(name string) (float64, error)
	StringProperty(name string) (string, error)
	ClearProperties()

	// ClearBody empties the body and makes it writeable again.
	ClearBody()

	// Acknowledge acknowledges this and every earlier message delivered to
	// the same client-acknowledge session. It is a no-op in other modes.
	Acknowledge() error

	// Acknowledged reports whether the message has been acknowledged.
	Acknowledged() bool

	// Clone returns a deep copy that is writeable and not bound to a session.
	Clone() Message

	msgHeader() *header
	bodyValue() (any, error)
	resetBody()
}

type header struct {
	id            string
	timestamp     time.Time
	correlationID string
	replyTo       Destination
	destination   Destination
	deliveryMode  DeliveryMode
	redelivered   bool
	typ           string
	expiration    time.Time
	priority      int

	props         values
	readOnlyProps bool
	readOnlyBody  bool
	acknowledged  bool

	session *Session
	origin  *Connection
	binder  Binder
}

func newHeader() header {
	return header{deliveryMode: Persistent, priority: DefaultPriority}
}

func (h *header) msgHeader() *header { return h }

func (h *header) bind(data []byte, v any) error {
	if h.binder == nil {
		return JSONBinder{}.Bind(data, v)
	}
	return h.binder.Bind(data, v)
}

func (h *header) MessageID() string              { return h.id }
func (h *header) SetMessageID(id string)         { h.id = id }
func (h *header) Timestamp() time.Time           { return h.timestamp }
func (h *header) SetTimestamp(t time.Time)       { h.timestamp = t }
func (h *header) CorrelationID() string          { return h.correlationID }
func (h *header) SetCorrelationID(id string)     { h.correlationID = id }
func (h *header) ReplyTo() Destination           { return h.replyTo }
func (h *header) SetReplyTo(d Destination)       { h.replyTo = d }
func (h *header) Destination() Destination       { return h.destination }
func (h *header) SetDestination(d Destination)   { h.destination = d }
func (h *header) DeliveryMode() DeliveryMode     { return h.deliveryMode }
func (h *header) SetDeliveryMode(m DeliveryMode) { h.deliveryMode = m }
func (h *header) Redelivered() bool              { return h.redelivered }
func (h *header) SetRedelivered(b bool)          { h.redelivered = b }
func (h *header) Type() string                   { return h.typ }
func (h *header) SetType(t string)               { h.typ = t }
func (h *header) Expiration() time.Time          { return h.expiration }
func (h *header) SetExpiration(t time.Time)      { h.expiration = t }
func (h *header) Priority() int                  { return h.priority }
func (h *header) SetPriority(p int)              { h.priority = p }
func (h *header) Acknowledged() bool             { return h.acknowledged }

func (h *header) SetProperty(name string, val any) error {
	if name == "" {
		return fmt.Errorf("%w: property name is empty", ErrInvalidArgument)
	}
	if h.readOnlyProps {
		return fmt.Errorf("%w: properties are read-only", ErrMessageNotWriteable)
	}
	if err := checkPrimitive(val); err != nil {
		return fmt.Errorf("property %q: %w", name, err)
	}
	h.props.set(name, val)
	return nil
}

func (h *header) Property(name string) (any, bool) { return h.props.get(name) }

func (h *header) PropertyExists(name string) bool {
	_, ok := h.props.get(name)
	return ok
}

func (h *header) PropertyNames() []string { return h.props.keys() }

func (h *header) BoolProperty(name string) (bool, error)       { return toBool(h.props.get(name)) }
func (h *header) Int32Property(name string) (int32, error)     { return toInt32(h.props.get(name)) }
func (h *header) Int64Property(name string) (int64, error)     { return toInt64(h.props.get(name)) }
func (h *header) Float64Property(name string) (float64, error) { return toFloat64(h.props.get(name)) }
func (h *header) StringProperty(name string) (string, error)   { return toString(h.props.get(name)) }

func (h *header) ClearProperties() {
	h.props.clear()
	h.readOnlyProps = false
}

func (h *header) Acknowledge() error {
	if h.session == nil {
		return nil
	}
	return h.session.Acknowledge()
}

// expired reports whether the message should be discarded instead of delivered.
func (h *header) expired(now time.Time) bool {
	return !h.expiration.IsZero() && now.After(h.expiration)
}

// copyHeader returns an unbound, writeable copy of h.
func (h *header) copyHeader() header {
	out := *h
	out.props = h.props.clone()
	out.readOnlyProps = false
	out.readOnlyBody = false
	out.acknowledged = false
	out.session = nil
	return out
}

// freeze marks a message as delivered: body and properties become read-only
// and readable bodies rewind to the start.
func freeze(m Message) {
	h := m.msgHeader()
	h.readOnlyProps = true
	h.readOnlyBody = true
	m.resetBody()
}

// BasicMessage carries headers and properties only.
type BasicMessage struct {
	header
}

// NewMessage returns an empty message without a body.
func NewMessage() *BasicMessage {
	return &BasicMessage{header: newHeader()}
}

func (m *BasicMessage) Kind() Kind              { return KindBasic }
func (m *BasicMessage) ClearBody()              { m.readOnlyBody = false }
func (m *BasicMessage) bodyValue() (any, error) { return nil, nil }
func (m *BasicMessage) resetBody()              {}

func (m *BasicMessage) Clone() Message {
	return &BasicMessage{header: m.copyHeader()}
}

// Body returns the body of msg as T. It fails with ErrMessageFormat when the
// message variant does not carry a T: a *TextMessage has a string body, a
// *BytesMessage a []byte, a *MapMessage a map[string]any and an
// *ObjectMessage whatever value was stored. Stream bodies cannot be read this way.
func Body[T any](msg Message) (T, error) {
	var zero T
	v, err := msg.bodyValue()
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s body is %T, not %T", ErrMessageFormat, msg.Kind(), v, zero)
	}
	return out, nil
}
