package kafkax

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header keys carried on every event this service produces.
const (
	HeaderEventID    = "event_id"
	HeaderEventType  = "event_type"
	HeaderOccurredAt = "occurred_at"
)

// Event is an outgoing message. Key selects the partition, so events for
// the same key stay ordered.
type Event struct {
	ID         string
	Type       string
	Key        string
	Payload    []byte
	OccurredAt time.Time
}

// Message builds the Kafka message for e on topic, with the event headers
// and the W3C trace context of ctx.
func (e Event) Message(ctx context.Context, topic string) kafka.Message {
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(e.ID)},
		{Key: HeaderEventType, Value: []byte(e.Type)},
		{Key: HeaderOccurredAt, Value: []byte(occurred.UTC().Format(time.RFC3339Nano))},
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(e.Key),
		Value:   e.Payload,
		Headers: InjectTraceHeaders(ctx, headers),
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
