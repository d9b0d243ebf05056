// Package mockjms is an in-memory JMS-style broker for tests. It re-exports
// the core types, so users can write:
//
//	f := mockjms.New()
//	q := f.DestinationManager().CreateQueue("orders")
//	conn, _ := f.CreateConnection()
//	s, _ := conn.CreateSession(false, mockjms.AutoAcknowledge)
package mockjms

import (
	"github.com/miladsoleymani/mockjms/core"
)

// Re-export core types at the package level for ergonomic usage.
type (
	ConnectionFactory  = core.ConnectionFactory
	Connection         = core.Connection
	Session            = core.Session
	Producer           = core.Producer
	Consumer           = core.Consumer
	Browser            = core.Browser
	Destination        = core.Destination
	Queue              = core.Queue
	Topic              = core.Topic
	Message            = core.Message
	Listener           = core.Listener
	Middleware         = core.Middleware
	Router             = core.Router
	AckMode            = core.AckMode
	Option             = core.Option
	DestinationManager = core.DestinationManager
)

const (
	SessionTransacted = core.SessionTransacted
	AutoAcknowledge   = core.AutoAcknowledge
	ClientAcknowledge = core.ClientAcknowledge
	DupsOKAcknowledge = core.DupsOKAcknowledge
)

// New creates a connection factory with its own destination manager.
func New(opts ...Option) *ConnectionFactory {
	return core.NewConnectionFactory(opts...)
}

// NewRouter creates a Router delivering through conn.
func NewRouter(conn *Connection) *Router {
	return core.NewRouter(conn)
}
