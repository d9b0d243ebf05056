package kafka

import (
	"sort"

	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/mockjms/core"
)

// ToKafka converts msg to a Kafka message for topic. Header fields and
// properties become Kafka headers; the correlation id, if any, is the key.
func ToKafka(msg core.Message, topic string) (kafka.Message, error) {
	env, err := core.Encode(msg)
	if err != nil {
		return kafka.Message{}, err
	}
	km := kafka.Message{
		Topic:   topic,
		Value:   env.Body,
		Headers: toHeaders(env.Strings()),
		Time:    env.Timestamp,
	}
	if env.CorrelationID != "" {
		km.Key = []byte(env.CorrelationID)
	}
	return km, nil
}

// FromKafka converts a fetched Kafka message back to a mock message. A
// message without mockjms headers becomes a bytes message. Reply-to
// destinations are resolved in dm, which may be nil.
func FromKafka(km kafka.Message, dm *core.DestinationManager) (core.Message, error) {
	h := make(map[string]string, len(km.Headers))
	for _, kh := range km.Headers {
		h[kh.Key] = string(kh.Value)
	}
	env, err := core.FromStrings(h, km.Value)
	if err != nil {
		return nil, err
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = km.Time
	}
	return core.Decode(env, dm)
}

// toHeaders converts a string map to Kafka headers, sorted by key.
func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	headers := make([]kafka.Header, 0, len(h))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(h[k])})
	}
	return headers
}
