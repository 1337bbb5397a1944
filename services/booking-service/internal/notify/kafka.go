package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const EventNotificationRequested = "booking.notification.requested.v1"

// MessageWriter is the subset of *kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier hands notifications to the notification pipeline as events on
// a topic named after the event type. Delivery to the user happens downstream.
type KafkaNotifier struct {
	writer MessageWriter
	topic  string
}

type KafkaConfig struct {
	Brokers      string
	Topic        string
	WriteTimeout time.Duration
}

func NewKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}, nil
}

func NewKafkaNotifier(writer MessageWriter, topic string) *KafkaNotifier {
	if topic == "" {
		topic = EventNotificationRequested
	}
	return &KafkaNotifier{writer: writer, topic: topic}
}

type notificationPayload struct {
	UserID        string `json:"user_id"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Type          string `json:"type"`
	CreatedAt     string `json:"created_at"`
}

func (n *KafkaNotifier) Notify(ctx context.Context, msg Notification) error {
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	payload, err := json.Marshal(notificationPayload{
		UserID:        msg.UserID,
		Title:         msg.Title,
		Message:       msg.Message,
		AppointmentID: msg.AppointmentID,
		Type:          "APPOINTMENT",
		CreatedAt:     createdAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	km := kafkax.Event{
		ID:         uuid.NewString(),
		Type:       EventNotificationRequested,
		Key:        msg.UserID,
		Payload:    payload,
		OccurredAt: createdAt,
	}.Message(ctx, n.topic)
	return n.writer.WriteMessages(ctx, km)
}
