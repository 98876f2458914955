// Package workers runs the Kafka consumers that apply catalog snapshots.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yanboishere/MetaOdds/internal/kafka"
	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/metrics"
	"github.com/yanboishere/MetaOdds/internal/models"
	"github.com/yanboishere/MetaOdds/internal/storage"
)

type Handler func(context.Context, *models.MarketSnapshot) error

// MessageReader is the part of *kafka.Reader a worker needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Pool consumes one topic with a fixed number of readers in the same group.
type Pool struct {
	Brokers     []string
	Topic       string
	Group       string
	WorkerCount int
	Logger      *zap.Logger
	Metrics     *metrics.Recorder

	// NewReader defaults to kafka.NewReader.
	NewReader func(brokers []string, topic, group string) MessageReader
}

// Run blocks until ctx is cancelled and every worker has returned.
func (p *Pool) Run(ctx context.Context, handler Handler) {
	count := p.WorkerCount
	if count <= 0 {
		count = 1
	}
	newReader := p.NewReader
	if newReader == nil {
		newReader = func(brokers []string, topic, group string) MessageReader {
			return kafka.NewReader(brokers, topic, group)
		}
	}
	logger := logging.OrNop(p.Logger).Named("workers")

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reader := newReader(p.Brokers, p.Topic, p.Group)
			defer reader.Close()
			consume(ctx, reader, handler, logger.With(zap.Int("worker", id)), p.Metrics)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
}

func consume(ctx context.Context, reader MessageReader, handler Handler, logger *zap.Logger, m *metrics.Recorder) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("worker read error", zap.Error(err))
			continue
		}

		var snapshot models.MarketSnapshot
		if err := json.Unmarshal(msg.Value, &snapshot); err != nil {
			m.RecordConsumed("decode_error")
			logger.Error("worker unmarshal error", zap.ByteString("key", msg.Key), zap.Error(err))
			continue
		}

		if handler != nil {
			if err := handler(ctx, &snapshot); err != nil {
				m.RecordConsumed("handler_error")
				logger.Error("worker handler error", zap.String("market_id", snapshot.Market.ID), zap.Error(err))
				continue
			}
		}
		m.RecordConsumed("ok")
	}
}

// MirrorHandler applies each snapshot to a replica store, stamped with the time
// the ingestor captured it.
func MirrorHandler(store storage.Store) Handler {
	return func(ctx context.Context, snap *models.MarketSnapshot) error {
		if snap.Market.ID == "" {
			return fmt.Errorf("snapshot %s has no market id", snap.RunID)
		}
		seenAt := snap.CapturedAt
		if seenAt.IsZero() {
			seenAt = time.Now().UTC()
		}
		_, err := store.Upsert(ctx, snap.Market, snap.Contracts, seenAt)
		return err
	}
}
