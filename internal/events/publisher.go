package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const EventPaymentCompleted = "payment_completed"

type PaymentCompleted struct {
	OrderID     string    `json:"order_id"`
	Reference   string    `json:"reference"`
	Amount      int64     `json:"amount"`
	SessionID   string    `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type Publisher interface {
	PublishPaymentCompleted(ctx context.Context, ev PaymentCompleted) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishPaymentCompleted(ctx context.Context, ev PaymentCompleted) error {
	msg, err := paymentCompletedMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish payment completed failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func paymentCompletedMessage(ev PaymentCompleted) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal payment completed failed: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.OrderID), // order_id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventPaymentCompleted)},
		},
	}, nil
}

type NoopPublisher struct{}

func (NoopPublisher) PublishPaymentCompleted(context.Context, PaymentCompleted) error { return nil }
func (NoopPublisher) Close() error                                                   { return nil }
