package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/receiptflow-ledger/internal/config"
)

// RecordEventProducer duplicates every finalized record onto the auxiliary
// record topic. Writes are synchronous so a failure is visible to the
// lifecycle engine, which logs it and moves on rather than blocking
// finalization.
type RecordEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

func NewRecordEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*RecordEventProducer, error) {
	if cfg.RecordTopic == "" {
		return nil, fmt.Errorf("kafka record topic is not configured")
	}
	if err := ensureTopic(cfg, cfg.RecordTopic, logger); err != nil {
		return nil, err
	}

	return &RecordEventProducer{
		logger: logger,
		writer: newWriter(cfg, cfg.RecordTopic, kafka.RequireOne, false, logger),
		topic:  cfg.RecordTopic,
	}, nil
}

func (p *RecordEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload})
	if err != nil {
		p.logger.Error("Failed to publish record event", "topic", p.topic, "key", key, "error", err)
		return fmt.Errorf("failed to publish record event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published record event", "topic", p.topic, "key", key)
	return nil
}

func (p *RecordEventProducer) Close() error {
	p.logger.Info("Closing record event producer", "topic", p.topic)
	return p.writer.Close()
}
