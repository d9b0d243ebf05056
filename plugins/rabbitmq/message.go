package rabbitmq

import (
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/miladsoleymani/mockjms/core"
)

// ToPublishing converts msg to an AMQP publishing. JMS headers map onto the
// AMQP basic properties; message properties travel in the header table with
// their types intact.
func ToPublishing(msg core.Message) (amqp.Publishing, error) {
	env, err := core.Encode(msg)
	if err != nil {
		return amqp.Publishing{}, err
	}
	headers := amqp.Table{core.HeaderKind: env.Kind.String()}
	for _, p := range env.Properties {
		headers[p.Name] = p.Value
	}
	if env.ReplyTo != "" {
		headers[core.HeaderReplyTo] = env.ReplyTo
	}
	if env.Redelivered {
		headers[core.HeaderRedelivered] = true
	}

	pub := amqp.Publishing{
		Headers:       headers,
		ContentType:   contentType(env.Kind),
		MessageId:     env.MessageID,
		CorrelationId: env.CorrelationID,
		Type:          env.Type,
		Timestamp:     env.Timestamp,
		Priority:      clampPriority(env.Priority),
		DeliveryMode:  uint8(env.DeliveryMode),
		Body:          env.Body,
	}
	if !env.Expiration.IsZero() {
		// AMQP expiration is relative; keep the absolute time for the way back
		headers[core.HeaderExpiration] = env.Expiration.UTC().Format(time.RFC3339Nano)
		ttl := time.Until(env.Expiration).Milliseconds()
		if ttl < 0 {
			ttl = 0
		}
		pub.Expiration = strconv.FormatInt(ttl, 10)
	}
	return pub, nil
}

// FromDelivery converts an AMQP delivery to a mock message. Reply-to
// destinations are resolved in dm, which may be nil.
func FromDelivery(d amqp.Delivery, dm *core.DestinationManager) (core.Message, error) {
	env := core.Envelope{
		Kind:          core.KindBytes,
		MessageID:     d.MessageId,
		CorrelationID: d.CorrelationId,
		Type:          d.Type,
		Timestamp:     d.Timestamp,
		Priority:      int(d.Priority),
		DeliveryMode:  core.DeliveryMode(d.DeliveryMode),
		Redelivered:   d.Redelivered,
		Body:          d.Body,
	}
	if d.Priority == 0 && d.Headers[core.HeaderKind] == nil {
		env.Priority = core.DefaultPriority
	}
	for k, v := range d.Headers {
		switch k {
		case core.HeaderKind:
			s, _ := v.(string)
			kind, err := core.ParseKind(s)
			if err != nil {
				return nil, fmt.Errorf("%w: header %s: %v", core.ErrMessageFormat, k, err)
			}
			env.Kind = kind
		case core.HeaderReplyTo:
			env.ReplyTo, _ = v.(string)
		case core.HeaderRedelivered:
			if b, ok := v.(bool); ok && b {
				env.Redelivered = true
			}
		case core.HeaderExpiration:
			s, _ := v.(string)
			exp, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("%w: header %s: %v", core.ErrMessageFormat, k, err)
			}
			env.Expiration = exp
		default:
			env.Properties = append(env.Properties, core.Property{Name: k, Value: propertyValue(v)})
		}
	}
	return core.Decode(env, dm)
}

// propertyValue narrows an AMQP table value to a property type.
func propertyValue(v any) any {
	switch t := v.(type) {
	case bool, int8, int16, int32, int64, float32, float64, string:
		return t
	case int:
		return int64(t)
	case byte:
		return int16(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

func contentType(k core.Kind) string {
	switch k {
	case core.KindText:
		return "text/plain"
	case core.KindMap, core.KindStream, core.KindObject:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// clampPriority maps JMS priority 0-9 onto the AMQP octet.
func clampPriority(p int) uint8 {
	switch {
	case p < 0:
		return 0
	case p > 9:
		return 9
	default:
		return uint8(p)
	}
}
