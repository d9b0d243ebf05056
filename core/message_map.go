package core

import "fmt"

// MapMessage carries an ordered set of named primitive values and byte slices.
type MapMessage struct {
	header
	body values
}

// NewMapMessage returns an empty, writeable map message.
func NewMapMessage() *MapMessage {
	return &MapMessage{header: newHeader()}
}

func (m *MapMessage) Kind() Kind { return KindMap }

// Set stores val under name. Accepted values are the property types plus []byte.
func (m *MapMessage) Set(name string, val any) error {
	if name == "" {
		return fmt.Errorf("%w: map item name is empty", ErrInvalidArgument)
	}
	if m.readOnlyBody {
		return fmt.Errorf("%w: map body is read-only", ErrMessageNotWriteable)
	}
	if b, ok := val.([]byte); ok {
		m.body.set(name, append([]byte(nil), b...))
		return nil
	}
	if err := checkPrimitive(val); err != nil {
		return fmt.Errorf("map item %q: %w", name, err)
	}
	m.body.set(name, val)
	return nil
}

func (m *MapMessage) Get(name string) (any, bool) { return m.body.get(name) }

func (m *MapMessage) ItemExists(name string) bool {
	_, ok := m.body.get(name)
	return ok
}

// Names returns the item names in insertion order.
func (m *MapMessage) Names() []string { return m.body.keys() }

func (m *MapMessage) Bool(name string) (bool, error)       { return toBool(m.body.get(name)) }
func (m *MapMessage) Int8(name string) (int8, error)       { return toInt8(m.body.get(name)) }
func (m *MapMessage) Int16(name string) (int16, error)     { return toInt16(m.body.get(name)) }
func (m *MapMessage) Int32(name string) (int32, error)     { return toInt32(m.body.get(name)) }
func (m *MapMessage) Int64(name string) (int64, error)     { return toInt64(m.body.get(name)) }
func (m *MapMessage) Float32(name string) (float32, error) { return toFloat32(m.body.get(name)) }
func (m *MapMessage) Float64(name string) (float64, error) { return toFloat64(m.body.get(name)) }
func (m *MapMessage) String(name string) (string, error)   { return toString(m.body.get(name)) }

// Bytes returns a copy of a []byte item. Missing items read as nil.
func (m *MapMessage) Bytes(name string) ([]byte, error) {
	val, ok := m.body.get(name)
	if !ok || val == nil {
		return nil, nil
	}
	b, ok := val.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: cannot read %T as []byte", ErrMessageFormat, val)
	}
	return append([]byte(nil), b...), nil
}

func (m *MapMessage) ClearBody() {
	m.body.clear()
	m.readOnlyBody = false
}

func (m *MapMessage) Clone() Message {
	return &MapMessage{header: m.copyHeader(), body: m.body.clone()}
}

func (m *MapMessage) bodyValue() (any, error) {
	out := make(map[string]any, len(m.body.names))
	for _, name := range m.body.names {
		val := m.body.items[name]
		if b, ok := val.([]byte); ok {
			val = append([]byte(nil), b...)
		}
		out[name] = val
	}
	return out, nil
}

func (m *MapMessage) resetBody() {}
