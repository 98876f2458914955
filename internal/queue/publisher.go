package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/metrics"
	"github.com/yanboishere/MetaOdds/internal/models"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher puts market snapshots on the catalog topic, keyed by market id.
type Publisher struct {
	writer  MessageWriter
	logger  *zap.Logger
	metrics *metrics.Recorder
}

func NewPublisher(writer MessageWriter, logger *zap.Logger, m *metrics.Recorder) *Publisher {
	return &Publisher{writer: writer, logger: logging.OrNop(logger).Named("publisher"), metrics: m}
}

// Publish writes every snapshot in one batch. A nil publisher is a no-op.
func (p *Publisher) Publish(ctx context.Context, snapshots []models.MarketSnapshot) error {
	if p == nil || p.writer == nil || len(snapshots) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(snapshots))
	for _, snap := range snapshots {
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot %s: %w", snap.Market.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(snap.Market.ID),
			Value: payload,
			Time:  snap.CapturedAt,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.RecordPublished("failed", len(msgs))
		return fmt.Errorf("write %d snapshots: %w", len(msgs), err)
	}
	p.metrics.RecordPublished("ok", len(msgs))
	p.logger.Debug("published snapshots", zap.Int("count", len(msgs)))
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
