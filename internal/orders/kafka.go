package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alaineid/robomarket-ae-sub000/internal/domain"
	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder publishes one order_placed event per order, keyed by order
// number so events of one order stay on one partition.
type KafkaRecorder struct {
	writer MessageWriter
}

func NewKafkaRecorder(topic string, brokers ...string) *KafkaRecorder {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaRecorder{writer: w}
}

func NewKafkaRecorderWithWriter(w MessageWriter) *KafkaRecorder {
	return &KafkaRecorder{writer: w}
}

func (r *KafkaRecorder) Record(ctx context.Context, order *domain.Order, conf *domain.Confirmation) error {
	ev := NewPlacedEvent(order, conf)
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.OrderNumber),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderPlaced)},
		},
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order %s: %w", ev.OrderNumber, err)
	}
	return nil
}

func (r *KafkaRecorder) Close() error {
	return r.writer.Close()
}
