package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Envelope is a message flattened for transports that carry a byte body and
// a header map. Plugins translate it to and from their client types.
type Envelope struct {
	Kind          Kind
	MessageID     string
	CorrelationID string
	Type          string
	ReplyTo       string // "queue://name" or "topic://name"
	Timestamp     time.Time
	Expiration    time.Time
	Priority      int
	DeliveryMode  DeliveryMode
	Redelivered   bool
	Properties    []Property
	Body          []byte
}

// Property is one named message property.
type Property struct {
	Name  string
	Value any
}

// Header names used by Strings and FromStrings.
const (
	HeaderKind          = "mockjms-kind"
	HeaderMessageID     = "JMSMessageID"
	HeaderCorrelationID = "JMSCorrelationID"
	HeaderType          = "JMSType"
	HeaderReplyTo       = "JMSReplyTo"
	HeaderTimestamp     = "JMSTimestamp"
	HeaderExpiration    = "JMSExpiration"
	HeaderPriority      = "JMSPriority"
	HeaderDeliveryMode  = "JMSDeliveryMode"
	HeaderRedelivered   = "JMSRedelivered"
)

// Encode flattens msg. Map and stream bodies become a JSON list of typed
// items, so every value decodes to the Go type it was written with; an
// object body is its JSON serialization.
func Encode(msg Message) (Envelope, error) {
	h := msg.msgHeader()
	env := Envelope{
		Kind:          msg.Kind(),
		MessageID:     h.id,
		CorrelationID: h.correlationID,
		Type:          h.typ,
		Timestamp:     h.timestamp,
		Expiration:    h.expiration,
		Priority:      h.priority,
		DeliveryMode:  h.deliveryMode,
		Redelivered:   h.redelivered,
	}
	if h.replyTo != nil {
		env.ReplyTo = destinationURI(h.replyTo)
	}
	for _, name := range h.props.names {
		env.Properties = append(env.Properties, Property{Name: name, Value: h.props.items[name]})
	}

	var err error
	switch m := msg.(type) {
	case *TextMessage:
		env.Body = []byte(m.text)
	case *BytesMessage:
		env.Body = append([]byte(nil), m.buf...)
	case *MapMessage:
		items := make([]typedItem, 0, len(m.body.names))
		for _, name := range m.body.names {
			var it typedItem
			if it, err = encodeItem(m.body.items[name]); err != nil {
				break
			}
			it.Name = name
			items = append(items, it)
		}
		if err == nil {
			env.Body, err = json.Marshal(items)
		}
	case *ObjectMessage:
		env.Body = append([]byte(nil), m.data...)
	case *StreamMessage:
		items := make([]typedItem, 0, len(m.items))
		for _, v := range m.items {
			var it typedItem
			if it, err = encodeItem(v); err != nil {
				break
			}
			items = append(items, it)
		}
		if err == nil {
			env.Body, err = json.Marshal(items)
		}
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: encode %s body: %v", ErrMessageFormat, msg.Kind(), err)
	}
	return env, nil
}

// Decode rebuilds a message from env. Reply-to destinations are looked up in
// dm, which may be nil to drop them.
func Decode(env Envelope, dm *DestinationManager) (Message, error) {
	var msg Message
	switch env.Kind {
	case KindBasic:
		msg = NewMessage()
	case KindText:
		msg = NewTextMessage(string(env.Body))
	case KindBytes:
		m := NewBytesMessage()
		m.buf = append([]byte(nil), env.Body...)
		msg = m
	case KindMap:
		m := NewMapMessage()
		items, err := decodeItems(env.Body)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			v, err := it.value()
			if err != nil {
				return nil, err
			}
			if err := m.Set(it.Name, v); err != nil {
				return nil, err
			}
		}
		msg = m
	case KindObject:
		m := &ObjectMessage{header: newHeader()}
		if len(env.Body) > 0 {
			var v any
			if err := decodeJSON(env.Body, &v); err != nil {
				return nil, err
			}
			m.object, m.data = v, append([]byte(nil), env.Body...)
		}
		msg = m
	case KindStream:
		m := NewStreamMessage()
		items, err := decodeItems(env.Body)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			v, err := it.value()
			if err != nil {
				return nil, err
			}
			if err := m.WriteObject(v); err != nil {
				return nil, err
			}
		}
		msg = m
	default:
		return nil, fmt.Errorf("%w: unknown message kind %d", ErrMessageFormat, int(env.Kind))
	}

	h := msg.msgHeader()
	h.id = env.MessageID
	h.correlationID = env.CorrelationID
	h.typ = env.Type
	h.timestamp = env.Timestamp
	h.expiration = env.Expiration
	h.priority = env.Priority
	h.redelivered = env.Redelivered
	if env.DeliveryMode != 0 {
		h.deliveryMode = env.DeliveryMode
	}
	if env.ReplyTo != "" && dm != nil {
		h.replyTo = dm.lookupURI(env.ReplyTo)
	}
	for _, p := range env.Properties {
		if err := h.SetProperty(p.Name, p.Value); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// Strings renders the envelope headers and properties as strings, for
// transports whose headers are text.
func (e Envelope) Strings() map[string]string {
	out := map[string]string{
		HeaderKind:         e.Kind.String(),
		HeaderPriority:     strconv.Itoa(e.Priority),
		HeaderDeliveryMode: strconv.Itoa(int(e.DeliveryMode)),
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set(HeaderMessageID, e.MessageID)
	set(HeaderCorrelationID, e.CorrelationID)
	set(HeaderType, e.Type)
	set(HeaderReplyTo, e.ReplyTo)
	if !e.Timestamp.IsZero() {
		out[HeaderTimestamp] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	if !e.Expiration.IsZero() {
		out[HeaderExpiration] = e.Expiration.UTC().Format(time.RFC3339Nano)
	}
	if e.Redelivered {
		out[HeaderRedelivered] = "true"
	}
	for _, p := range e.Properties {
		out[p.Name] = fmt.Sprint(p.Value)
	}
	return out
}

// FromStrings is the inverse of Strings. Properties come back as strings;
// the typed property getters convert them on read. Without a kind header the
// body is taken as a bytes body.
func FromStrings(headers map[string]string, body []byte) (Envelope, error) {
	env := Envelope{Kind: KindBytes, Body: body, Priority: DefaultPriority, DeliveryMode: Persistent}
	var err error
	for k, v := range headers {
		switch k {
		case HeaderKind:
			env.Kind, err = ParseKind(v)
		case HeaderMessageID:
			env.MessageID = v
		case HeaderCorrelationID:
			env.CorrelationID = v
		case HeaderType:
			env.Type = v
		case HeaderReplyTo:
			env.ReplyTo = v
		case HeaderTimestamp:
			env.Timestamp, err = time.Parse(time.RFC3339Nano, v)
		case HeaderExpiration:
			env.Expiration, err = time.Parse(time.RFC3339Nano, v)
		case HeaderPriority:
			env.Priority, err = strconv.Atoi(v)
		case HeaderDeliveryMode:
			var n int
			n, err = strconv.Atoi(v)
			env.DeliveryMode = DeliveryMode(n)
		case HeaderRedelivered:
			env.Redelivered = v == "true"
		default:
			env.Properties = append(env.Properties, Property{Name: k, Value: v})
		}
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: header %s: %v", ErrMessageFormat, k, err)
		}
	}
	return env, nil
}

func destinationURI(d Destination) string {
	return d.Kind().String() + "://" + d.Name()
}

// lookupURI resolves a destinationURI result, or returns nil.
func (dm *DestinationManager) lookupURI(uri string) Destination {
	kind, name, ok := strings.Cut(uri, "://")
	if !ok {
		return nil
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	switch kind {
	case "queue":
		if q, ok := dm.queues[name]; ok {
			return q
		}
	case "topic":
		if t, ok := dm.topics[name]; ok {
			return t
		}
	}
	return nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: json: %v", ErrMessageFormat, err)
	}
	return nil
}

// typedItem is one map or stream value on the wire. Values are kept as
// text so integers and floats of every width round-trip exactly.
type typedItem struct {
	Name  string `json:"n,omitempty"`
	Type  string `json:"t"`
	Value string `json:"v,omitempty"`
}

func encodeItem(v any) (typedItem, error) {
	switch x := v.(type) {
	case nil:
		return typedItem{Type: "null"}, nil
	case bool:
		return typedItem{Type: "bool", Value: strconv.FormatBool(x)}, nil
	case int8:
		return typedItem{Type: "int8", Value: strconv.FormatInt(int64(x), 10)}, nil
	case int16:
		return typedItem{Type: "int16", Value: strconv.FormatInt(int64(x), 10)}, nil
	case int32:
		return typedItem{Type: "int32", Value: strconv.FormatInt(int64(x), 10)}, nil
	case int:
		return typedItem{Type: "int", Value: strconv.Itoa(x)}, nil
	case int64:
		return typedItem{Type: "int64", Value: strconv.FormatInt(x, 10)}, nil
	case float32:
		return typedItem{Type: "float32", Value: strconv.FormatFloat(float64(x), 'g', -1, 32)}, nil
	case float64:
		return typedItem{Type: "float64", Value: strconv.FormatFloat(x, 'g', -1, 64)}, nil
	case string:
		return typedItem{Type: "string", Value: x}, nil
	case []byte:
		return typedItem{Type: "bytes", Value: base64.StdEncoding.EncodeToString(x)}, nil
	default:
		return typedItem{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func (it typedItem) value() (any, error) {
	var (
		v   any
		err error
	)
	switch it.Type {
	case "null":
	case "bool":
		v, err = strconv.ParseBool(it.Value)
	case "int8":
		var n int64
		n, err = strconv.ParseInt(it.Value, 10, 8)
		v = int8(n)
	case "int16":
		var n int64
		n, err = strconv.ParseInt(it.Value, 10, 16)
		v = int16(n)
	case "int32":
		var n int64
		n, err = strconv.ParseInt(it.Value, 10, 32)
		v = int32(n)
	case "int":
		v, err = strconv.Atoi(it.Value)
	case "int64":
		v, err = strconv.ParseInt(it.Value, 10, 64)
	case "float32":
		var f float64
		f, err = strconv.ParseFloat(it.Value, 32)
		v = float32(f)
	case "float64":
		v, err = strconv.ParseFloat(it.Value, 64)
	case "string":
		v = it.Value
	case "bytes":
		v, err = base64.StdEncoding.DecodeString(it.Value)
	default:
		err = fmt.Errorf("unknown item type %q", it.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: item %q: %v", ErrMessageFormat, it.Name, err)
	}
	return v, nil
}

func decodeItems(body []byte) ([]typedItem, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var items []typedItem
	if err := decodeJSON(body, &items); err != nil {
		return nil, err
	}
	return items, nil
}
