package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tracefunnel/tracefunnel/internal/config"
)

// Publisher ships the finished run log to a Kafka topic, keyed by run name,
// so downstream dashboards can pick it up without scraping log files.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("Run log publisher created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)
	return &Publisher{
		writer: w,
		logger: logger.Named("publisher"),
	}
}

// Publish sends the run log as one JSON message.
func (p *Publisher) Publish(ctx context.Context, log RunLog) error {
	buf, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingRunLog, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(log.Name),
		Value: buf,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	p.logger.Info("Run log published", zap.String("run", log.Name), zap.Int("bytes", len(buf)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
