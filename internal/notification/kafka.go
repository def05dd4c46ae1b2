package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes alert events to a Kafka topic. Messages are keyed
// by subject so all alerts for one wallet or budget land on one partition in
// order.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier wraps a configured kafka writer.
func NewKafkaNotifier(writer *kafka.Writer) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// Send publishes the event as JSON.
func (n *KafkaNotifier) Send(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Subject),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("publish alert event: %w", err)
	}
	return nil
}
