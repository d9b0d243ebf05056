package nats

import (
	"github.com/nats-io/nats.go"

	"github.com/miladsoleymani/mockjms/core"
)

// ToNATS converts msg to a NATS message on subject. Header fields and
// properties become NATS headers.
func ToNATS(msg core.Message, subject string) (*nats.Msg, error) {
	env, err := core.Encode(msg)
	if err != nil {
		return nil, err
	}
	nm := nats.NewMsg(subject)
	// keys are stored as written; JMS header names are mixed case
	for k, v := range env.Strings() {
		nm.Header[k] = []string{v}
	}
	nm.Data = env.Body
	return nm, nil
}

// FromNATS converts a received NATS message to a mock message. Reply-to
// destinations are resolved in dm, which may be nil.
func FromNATS(m *nats.Msg, dm *core.DestinationManager) (core.Message, error) {
	return fromParts(m.Header, m.Data, dm)
}

// FromJetStream converts a JetStream message, or anything exposing its
// headers and data, to a mock message.
func FromJetStream(m JetStreamMsg, dm *core.DestinationManager) (core.Message, error) {
	return fromParts(m.Headers(), m.Data(), dm)
}

func fromParts(h nats.Header, data []byte, dm *core.DestinationManager) (core.Message, error) {
	flat := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	env, err := core.FromStrings(flat, data)
	if err != nil {
		return nil, err
	}
	return core.Decode(env, dm)
}
