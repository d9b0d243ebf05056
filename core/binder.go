package core

import (
	"encoding/json"
	"fmt"
)

// Binder deserializes raw body bytes into a Go value. TextMessage.Bind uses
// the factory's binder (see WithBinder) on delivered messages and
// JSONBinder otherwise.
type Binder interface {
	Bind(data []byte, v any) error
}

// JSONBinder deserializes JSON bodies.
type JSONBinder struct{}

func (JSONBinder) Bind(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: json: %v", ErrMessageFormat, err)
	}
	return nil
}
