package core

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalState is returned when an operation is attempted on a closed
	// connection, session, producer or consumer, or at a time it is not allowed.
	ErrIllegalState = errors.New("mockjms: illegal state")

	// ErrMessageFormat is returned when a value has the wrong type for the
	// accessor used to read or write it.
	ErrMessageFormat = errors.New("mockjms: message format")

	// ErrMessageNotWriteable is returned when writing to a read-only body or property set.
	ErrMessageNotWriteable = errors.New("mockjms: message not writeable")

	// ErrMessageNotReadable is returned when reading a body that is still in write mode.
	ErrMessageNotReadable = errors.New("mockjms: message not readable")

	// ErrMessageEOF is returned when reading past the end of a bytes or stream body.
	ErrMessageEOF = errors.New("mockjms: unexpected end of message")

	// ErrInvalidDestination is returned for unknown or deleted destinations.
	ErrInvalidDestination = errors.New("mockjms: invalid destination")

	// ErrInvalidSelector is returned when a message selector cannot be parsed.
	ErrInvalidSelector = errors.New("mockjms: invalid selector")

	// ErrInvalidClientID is returned when a client id is already in use.
	ErrInvalidClientID = errors.New("mockjms: invalid client id")

	// ErrInvalidArgument is returned for out-of-range or empty arguments.
	ErrInvalidArgument = errors.New("mockjms: invalid argument")

	// ErrUnsupported is returned for features the mock does not emulate.
	ErrUnsupported = errors.New("mockjms: unsupported operation")

	// ErrAlreadyStarted is returned when Start is called on a running router.
	ErrAlreadyStarted = errors.New("mockjms: router already started")

	// ErrNoConnection is returned when a router is created without a connection.
	ErrNoConnection = errors.New("mockjms: connection is nil")
)

// ListenerError reports a message listener that failed, or panicked, while
// a message was delivered. Send, Commit and the other calls that trigger
// delivery return it, joined with any other listener failures of the same
// delivery run. The message that triggered the run was routed regardless.
type ListenerError struct {
	Destination string
	MessageID   string
	Err         error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener on %s: %v", e.Destination, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// Routed reports whether err, as returned by Send, SendTo or Commit, left
// the messages routed to their destinations: err is nil or only reports
// listener failures.
func Routed(err error) bool {
	if err == nil {
		return true
	}
	var le *ListenerError
	return errors.As(err, &le)
}
