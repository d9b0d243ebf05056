package core

import "fmt"

// StreamMessage carries a sequence of typed values read back in order.
// Like BytesMessage it is write-only until Reset or delivery.
type StreamMessage struct {
	header
	items []any
	pos   int
}

// NewStreamMessage returns an empty, write-only stream message.
func NewStreamMessage() *StreamMessage {
	return &StreamMessage{header: newHeader()}
}

func (m *StreamMessage) Kind() Kind { return KindStream }

// Reset puts the body in read-only mode and rewinds it.
func (m *StreamMessage) Reset() {
	m.readOnlyBody = true
	m.pos = 0
}

func (m *StreamMessage) ClearBody() {
	m.items = nil
	m.pos = 0
	m.readOnlyBody = false
}

func (m *StreamMessage) Clone() Message {
	items := make([]any, len(m.items))
	for i, it := range m.items {
		if b, ok := it.([]byte); ok {
			it = append([]byte(nil), b...)
		}
		items[i] = it
	}
	return &StreamMessage{header: m.copyHeader(), items: items}
}

// Items returns a copy of the written values.
func (m *StreamMessage) Items() []any {
	return append([]any(nil), m.items...)
}

func (m *StreamMessage) bodyValue() (any, error) {
	return nil, fmt.Errorf("%w: stream body has no single value", ErrMessageFormat)
}

func (m *StreamMessage) resetBody() { m.pos = 0 }

// WriteObject appends v, which must be a property type, []byte or nil.
func (m *StreamMessage) WriteObject(v any) error {
	if m.readOnlyBody {
		return fmt.Errorf("%w: stream body is read-only", ErrMessageNotWriteable)
	}
	switch b := v.(type) {
	case nil:
	case []byte:
		v = append([]byte(nil), b...)
	default:
		if err := checkPrimitive(v); err != nil {
			return err
		}
	}
	m.items = append(m.items, v)
	return nil
}

func (m *StreamMessage) WriteBool(v bool) error       { return m.WriteObject(v) }
func (m *StreamMessage) WriteInt32(v int32) error     { return m.WriteObject(v) }
func (m *StreamMessage) WriteInt64(v int64) error     { return m.WriteObject(v) }
func (m *StreamMessage) WriteFloat64(v float64) error { return m.WriteObject(v) }
func (m *StreamMessage) WriteString(v string) error   { return m.WriteObject(v) }
func (m *StreamMessage) WriteBytes(v []byte) error    { return m.WriteObject(v) }

// peek returns the next value without consuming it.
func (m *StreamMessage) peek() (any, error) {
	if !m.readOnlyBody {
		return nil, fmt.Errorf("%w: stream body is write-only", ErrMessageNotReadable)
	}
	if m.pos >= len(m.items) {
		return nil, ErrMessageEOF
	}
	return m.items[m.pos], nil
}

// readStream converts the next value with conv and only advances on success.
func readStream[T any](m *StreamMessage, conv func(any, bool) (T, error)) (T, error) {
	var zero T
	v, err := m.peek()
	if err != nil {
		return zero, err
	}
	out, err := conv(v, true)
	if err != nil {
		return zero, err
	}
	m.pos++
	return out, nil
}

func (m *StreamMessage) ReadBool() (bool, error)       { return readStream(m, toBool) }
func (m *StreamMessage) ReadInt32() (int32, error)     { return readStream(m, toInt32) }
func (m *StreamMessage) ReadInt64() (int64, error)     { return readStream(m, toInt64) }
func (m *StreamMessage) ReadFloat64() (float64, error) { return readStream(m, toFloat64) }
func (m *StreamMessage) ReadString() (string, error)   { return readStream(m, toString) }

func (m *StreamMessage) ReadBytes() ([]byte, error) {
	return readStream(m, func(v any, _ bool) ([]byte, error) {
		switch b := v.(type) {
		case nil:
			return nil, nil
		case []byte:
			return append([]byte(nil), b...), nil
		}
		return nil, fmt.Errorf("%w: cannot read %T as []byte", ErrMessageFormat, v)
	})
}

func (m *StreamMessage) ReadObject() (any, error) {
	return readStream(m, func(v any, _ bool) (any, error) { return v, nil })
}
