package core

import (
	"encoding/json"
	"fmt"
)

// ObjectMessage carries an arbitrary Go value. The value is serialized to JSON
// when stored so receivers can Bind an independent copy of it.
type ObjectMessage struct {
	header
	object any
	data   []byte
}

// NewObjectMessage returns an object message holding v.
func NewObjectMessage(v any) (*ObjectMessage, error) {
	m := &ObjectMessage{header: newHeader()}
	if err := m.SetObject(v); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ObjectMessage) Kind() Kind { return KindObject }

// SetObject stores v. It fails with ErrMessageFormat if v cannot be serialized.
func (m *ObjectMessage) SetObject(v any) error {
	if m.readOnlyBody {
		return fmt.Errorf("%w: object body is read-only", ErrMessageNotWriteable)
	}
	if v == nil {
		m.object, m.data = nil, nil
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: serialize %T: %v", ErrMessageFormat, v, err)
	}
	m.object, m.data = v, data
	return nil
}

// Object returns the stored value as it was passed to SetObject.
func (m *ObjectMessage) Object() any { return m.object }

// Bind decodes a copy of the stored value into v.
func (m *ObjectMessage) Bind(v any) error {
	if m.data == nil {
		return fmt.Errorf("%w: object body is empty", ErrMessageFormat)
	}
	return JSONBinder{}.Bind(m.data, v)
}

// Data returns the serialized form of the stored value.
func (m *ObjectMessage) Data() []byte { return append([]byte(nil), m.data...) }

func (m *ObjectMessage) ClearBody() {
	m.object, m.data = nil, nil
	m.readOnlyBody = false
}

func (m *ObjectMessage) Clone() Message {
	return &ObjectMessage{header: m.copyHeader(), object: m.object, data: append([]byte(nil), m.data...)}
}

func (m *ObjectMessage) bodyValue() (any, error) { return m.object, nil }
func (m *ObjectMessage) resetBody()              {}
