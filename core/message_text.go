package core

import "fmt"

// TextMessage carries a string body.
type TextMessage struct {
	header
	text string
}

// NewTextMessage returns a writeable text message holding text.
func NewTextMessage(text string) *TextMessage {
	return &TextMessage{header: newHeader(), text: text}
}

func (m *TextMessage) Kind() Kind { return KindText }

// SetText replaces the body.
func (m *TextMessage) SetText(text string) error {
	if m.readOnlyBody {
		return fmt.Errorf("%w: text body is read-only", ErrMessageNotWriteable)
	}
	m.text = text
	return nil
}

func (m *TextMessage) Text() string { return m.text }

// String returns the text body.
func (m *TextMessage) String() string { return m.text }

// Bind decodes the text body into v, as JSON unless the message was
// delivered by a factory with another Binder.
func (m *TextMessage) Bind(v any) error {
	return m.bind([]byte(m.text), v)
}

func (m *TextMessage) ClearBody() {
	m.text = ""
	m.readOnlyBody = false
}

func (m *TextMessage) Clone() Message {
	return &TextMessage{header: m.copyHeader(), text: m.text}
}

func (m *TextMessage) bodyValue() (any, error) { return m.text, nil }
func (m *TextMessage) resetBody()              {}
