package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/receiptflow-ledger/internal/config"
)

const topicProbeAttempts = 5

// ensureTopic makes sure a topic exists before a producer starts writing to
// it. Partition reads are retried because a broker that just came up can
// briefly answer with transient errors for topics that do exist.
func ensureTopic(cfg *config.KafkaConfig, topic string, log *slog.Logger) error {
	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker %s: %w", cfg.Brokers, err)
	}
	defer conn.Close()

	var partitions []kafka.Partition
	for attempt := 1; attempt <= topicProbeAttempts; attempt++ {
		partitions, err = conn.ReadPartitions(topic)
		if err == nil {
			break
		}
		log.Warn("Failed to read partitions, retrying", "topic", topic, "attempt", attempt, "error", err)
		time.Sleep(2 * time.Second)
	}

	if len(partitions) > 0 {
		log.Debug("Kafka topic already exists", "topic", topic, "partitions", len(partitions))
		return nil
	}

	spec := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if spec.NumPartitions <= 0 {
		spec.NumPartitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}

	if err := conn.CreateTopics(spec); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	log.Info("Created Kafka topic", "topic", topic, "partitions", spec.NumPartitions)
	return nil
}

// newWriter builds a kafka.Writer with the settings shared by every producer
// in this package. Async writers trade delivery observability for intake
// throughput; failures surface through the completion callback only.
func newWriter(cfg *config.KafkaConfig, topic string, acks kafka.RequiredAcks, async bool, log *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: acks,
		Async:        async,
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("Kafka write failed", "topic", topic, "count", len(messages), "error", err)
			}
		},
	}
}
