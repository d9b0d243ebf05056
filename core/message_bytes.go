package core

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BytesMessage carries an uninterpreted byte body written and read with
// big-endian primitives. A new message is write-only; Reset or delivery
// switches it to read-only mode positioned at the start.
type BytesMessage struct {
	header
	buf []byte
	pos int
}

// NewBytesMessage returns a write-only bytes message.
func NewBytesMessage() *BytesMessage {
	return &BytesMessage{header: newHeader()}
}

func (m *BytesMessage) Kind() Kind { return KindBytes }

// Reset puts the body in read-only mode and rewinds it.
func (m *BytesMessage) Reset() {
	m.readOnlyBody = true
	m.pos = 0
}

// BodyLength returns the body size. Only valid in read mode.
func (m *BytesMessage) BodyLength() (int, error) {
	if !m.readOnlyBody {
		return 0, fmt.Errorf("%w: bytes body is write-only", ErrMessageNotReadable)
	}
	return len(m.buf), nil
}

func (m *BytesMessage) ClearBody() {
	m.buf = nil
	m.pos = 0
	m.readOnlyBody = false
}

func (m *BytesMessage) Clone() Message {
	return &BytesMessage{header: m.copyHeader(), buf: append([]byte(nil), m.buf...)}
}

func (m *BytesMessage) bodyValue() (any, error) {
	return append([]byte(nil), m.buf...), nil
}

func (m *BytesMessage) resetBody() { m.pos = 0 }

func (m *BytesMessage) write(p []byte) error {
	if m.readOnlyBody {
		return fmt.Errorf("%w: bytes body is read-only", ErrMessageNotWriteable)
	}
	m.buf = append(m.buf, p...)
	return nil
}

func (m *BytesMessage) next(n int) ([]byte, error) {
	if !m.readOnlyBody {
		return nil, fmt.Errorf("%w: bytes body is write-only", ErrMessageNotReadable)
	}
	if m.pos+n > len(m.buf) {
		return nil, ErrMessageEOF
	}
	p := m.buf[m.pos : m.pos+n]
	m.pos += n
	return p, nil
}

func (m *BytesMessage) WriteBool(v bool) error {
	if v {
		return m.write([]byte{1})
	}
	return m.write([]byte{0})
}

func (m *BytesMessage) WriteByte(c byte) error { return m.write([]byte{c}) }

func (m *BytesMessage) WriteInt16(v int16) error {
	return m.write(binary.BigEndian.AppendUint16(nil, uint16(v)))
}

func (m *BytesMessage) WriteInt32(v int32) error {
	return m.write(binary.BigEndian.AppendUint32(nil, uint32(v)))
}

func (m *BytesMessage) WriteInt64(v int64) error {
	return m.write(binary.BigEndian.AppendUint64(nil, uint64(v)))
}

func (m *BytesMessage) WriteFloat32(v float32) error {
	return m.write(binary.BigEndian.AppendUint32(nil, math.Float32bits(v)))
}

func (m *BytesMessage) WriteFloat64(v float64) error {
	return m.write(binary.BigEndian.AppendUint64(nil, math.Float64bits(v)))
}

// WriteUTF writes s prefixed with its length as an unsigned 16-bit integer.
func (m *BytesMessage) WriteUTF(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: string of %d bytes is too long", ErrMessageFormat, len(s))
	}
	p := binary.BigEndian.AppendUint16(nil, uint16(len(s)))
	return m.write(append(p, s...))
}

func (m *BytesMessage) WriteBytes(p []byte) error { return m.write(p) }

func (m *BytesMessage) ReadBool() (bool, error) {
	p, err := m.next(1)
	if err != nil {
		return false, err
	}
	return p[0] != 0, nil
}

func (m *BytesMessage) ReadByte() (byte, error) {
	p, err := m.next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (m *BytesMessage) ReadInt16() (int16, error) {
	p, err := m.next(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(p)), nil
}

func (m *BytesMessage) ReadInt32() (int32, error) {
	p, err := m.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(p)), nil
}

func (m *BytesMessage) ReadInt64() (int64, error) {
	p, err := m.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(p)), nil
}

func (m *BytesMessage) ReadFloat32() (float32, error) {
	p, err := m.next(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(p)), nil
}

func (m *BytesMessage) ReadFloat64() (float64, error) {
	p, err := m.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

func (m *BytesMessage) ReadUTF() (string, error) {
	start := m.pos
	p, err := m.next(2)
	if err != nil {
		return "", err
	}
	s, err := m.next(int(binary.BigEndian.Uint16(p)))
	if err != nil {
		m.pos = start
		return "", err
	}
	return string(s), nil
}

// ReadBytes fills p from the body and returns the number of bytes read.
// It returns ErrMessageEOF once the body is exhausted.
func (m *BytesMessage) ReadBytes(p []byte) (int, error) {
	if !m.readOnlyBody {
		return 0, fmt.Errorf("%w: bytes body is write-only", ErrMessageNotReadable)
	}
	if m.pos >= len(m.buf) && len(p) > 0 {
		return 0, ErrMessageEOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += n
	return n, nil
}
