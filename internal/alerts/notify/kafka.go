package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes one message per alert event to a Kafka topic,
// keyed by inverter id so per-inverter ordering survives partitioning.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier constructs a Kafka sink.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, errors.New("notify: no kafka brokers")
	}
	if topic == "" {
		return nil, errors.New("notify: empty kafka topic")
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	return &KafkaNotifier{writer: writer}, nil
}

// Notify implements Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, summary Summary) error {
	if len(summary.Events) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(summary.Events))
	for _, event := range summary.Events {
		value, err := json.Marshal(event)
		if err != nil {
			return err
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(event.InverterID),
			Value: value,
		})
	}
	return n.writer.WriteMessages(ctx, messages...)
}

// Close releases the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
