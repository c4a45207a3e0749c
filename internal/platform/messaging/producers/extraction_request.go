package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/receiptflow-ledger/internal/config"
)

// ExtractionMessageProducer feeds raw extraction payloads from the API
// gateway onto the intake topic. Writes are asynchronous: the gateway
// acknowledges the upload with 202 before the broker confirms, and the
// processor's idempotency check absorbs any redelivery.
type ExtractionMessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewExtractionMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ExtractionMessageProducer, error) {
	if cfg.ExtractionTopic == "" {
		return nil, fmt.Errorf("kafka extraction topic is not configured")
	}
	if err := ensureTopic(cfg, cfg.ExtractionTopic, logger); err != nil {
		return nil, err
	}

	return &ExtractionMessageProducer{
		logger: logger,
		writer: newWriter(cfg, cfg.ExtractionTopic, kafka.RequireOne, true, logger),
		topic:  cfg.ExtractionTopic,
	}, nil
}

// Publish keys the message by receipt ID so all deliveries for one receipt
// land on the same partition in order.
func (p *ExtractionMessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction message: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload})
	if err != nil {
		p.logger.Error("Failed to publish extraction message", "topic", p.topic, "key", key, "error", err)
		return fmt.Errorf("failed to publish extraction message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published extraction message", "topic", p.topic, "key", key)
	return nil
}

func (p *ExtractionMessageProducer) Close() error {
	p.logger.Info("Closing extraction message producer", "topic", p.topic)
	return p.writer.Close()
}
