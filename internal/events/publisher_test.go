package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_PublishPaymentCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	ev := PaymentCompleted{
		OrderID:     "O1",
		Reference:   "R1",
		Amount:      5000,
		SessionID:   "s1",
		CompletedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, p.PublishPaymentCompleted(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "O1", string(msg.Key))
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte(EventPaymentCompleted)}}, msg.Headers)

	var decoded PaymentCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}

	err := p.PublishPaymentCompleted(context.Background(), PaymentCompleted{OrderID: "O1"})
	assert.ErrorContains(t, err, "broker down")
}

func TestNewKafkaPublisher(t *testing.T) {
	p := NewKafkaPublisher("payment-completed", "localhost:9092")
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "payment-completed", w.Topic)
	assert.NoError(t, p.Close())
}
