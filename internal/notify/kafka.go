package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"storefront/internal/models"
)

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON envelope published for every notification.
type Event struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	OccurredAt   time.Time           `json:"occurredAt"`
	Notification models.Notification `json:"notification"`
}

const eventTypeNotification = "notification.created"

// KafkaPublisher publishes notifications to a topic keyed by user id, so a
// user's notifications stay ordered within a partition.
type KafkaPublisher struct {
	writer kafkaMessageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on brokers
// (host:port each).
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

// NewKafkaPublisherWith is only for tests to inject a fake writer.
func NewKafkaPublisherWith(w kafkaMessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) Emit(ctx context.Context, n *models.Notification) error {
	event := Event{
		ID:           uuid.NewString(),
		Type:         eventTypeNotification,
		OccurredAt:   time.Now().UTC(),
		Notification: *n,
	}
	b, err := json.Marshal(&event)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.UserID.Hex()),
		Value: b,
	})
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }
