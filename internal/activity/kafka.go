package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaSink publishes events as JSON to a Kafka topic, keyed by account id
// so one account's events stay ordered within a partition.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaSink creates an idempotent producer for the given brokers.
func NewKafkaSink(brokers, topic string, logger *slog.Logger) (*KafkaSink, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     brokers,
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	s := &KafkaSink{
		producer: p,
		topic:    topic,
		logger:   logger,
	}

	go s.handleDeliveryReports()

	logger.Info("Kafka activity producer initialized",
		"brokers", brokers,
		"topic", topic)

	return s, nil
}

// Record enqueues the event. Delivery is reported asynchronously.
func (s *KafkaSink) Record(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &s.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(e.AccountID),
		Value: data,
	}

	if err := s.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func (s *KafkaSink) handleDeliveryReports() {
	for e := range s.producer.Events() {
		ev, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if ev.TopicPartition.Error != nil {
			s.logger.Error("Activity delivery failed",
				"topic", *ev.TopicPartition.Topic,
				"error", ev.TopicPartition.Error)
			continue
		}
		s.logger.Debug("Activity delivered",
			"topic", *ev.TopicPartition.Topic,
			"partition", ev.TopicPartition.Partition,
			"offset", ev.TopicPartition.Offset)
	}
}

// Close flushes pending messages for up to ten seconds and closes the producer.
func (s *KafkaSink) Close() {
	if remaining := s.producer.Flush(10000); remaining > 0 {
		s.logger.Error("Some activity events were not delivered", "count", remaining)
	}
	s.producer.Close()
}
