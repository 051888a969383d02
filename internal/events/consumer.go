package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

var ErrUnknownEvent = errors.New("unknown event type")

// HandlerFunc processes one payment-completed event. It must be idempotent:
// the same event can be delivered more than once.
type HandlerFunc func(ctx context.Context, ev PaymentCompleted) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads payment-completed events and hands them to a HandlerFunc.
type Consumer struct {
	reader messageReader
	handle HandlerFunc
	log    *slog.Logger
}

func NewKafkaConsumer(topic, groupID string, handle HandlerFunc, log *slog.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reader: reader,
		handle: handle,
		log:    log.With(slog.String("component", "events_consumer"), slog.String("topic", topic)),
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.next(ctx)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) next(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.WarnContext(ctx, "failed to read message", slog.Any("error", err))
		}
		return
	}

	ev, err := decodePaymentCompleted(m)
	if err != nil {
		c.log.WarnContext(ctx, "skipping message", slog.Int64("offset", m.Offset), slog.Any("error", err))
		return
	}
	if err := c.handle(ctx, ev); err != nil {
		c.log.ErrorContext(ctx, "failed to handle payment completed",
			slog.String("order_id", ev.OrderID), slog.Any("error", err))
	}
}

func decodePaymentCompleted(m kafka.Message) (PaymentCompleted, error) {
	var eventType string
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			eventType = string(h.Value)
		}
	}
	if eventType != EventPaymentCompleted {
		return PaymentCompleted{}, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}

	var ev PaymentCompleted
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return PaymentCompleted{}, fmt.Errorf("unmarshal payment completed failed: %w", err)
	}
	if ev.SessionID == "" || ev.Reference == "" {
		return PaymentCompleted{}, errors.New("payment completed event is missing session or reference")
	}
	return ev, nil
}
