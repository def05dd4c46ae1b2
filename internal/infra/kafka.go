package infra

import (
	"fmt"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter builds a synchronous Kafka writer for the alert topic. The
// hash balancer keyed on the event subject keeps alerts for one wallet or
// budget in order on a single partition.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		MaxAttempts:  10,
	}, nil
}
