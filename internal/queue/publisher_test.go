package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanboishere/MetaOdds/internal/models"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishKeysByMarketID(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisher(w, nil, nil)
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	snaps := []models.MarketSnapshot{
		models.NewSnapshot("run-1", models.OriginLive, models.Market{ID: "kalshi:A"}, nil, now),
		models.NewSnapshot("run-1", models.OriginFixture, models.Market{ID: "polymarket:b"}, []models.Contract{{ID: "polymarket:b:Yes"}}, now),
	}

	require.NoError(t, p.Publish(context.Background(), snaps))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "kalshi:A", string(w.msgs[0].Key))
	assert.Equal(t, "polymarket:b", string(w.msgs[1].Key))

	var decoded models.MarketSnapshot
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &decoded))
	assert.Equal(t, models.OriginFixture, decoded.Origin)
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Contracts, 1)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishNoops(t *testing.T) {
	var nilPub *Publisher
	assert.NoError(t, nilPub.Publish(context.Background(), []models.MarketSnapshot{{}}))
	assert.NoError(t, nilPub.Close())

	w := &recordingWriter{}
	assert.NoError(t, NewPublisher(w, nil, nil).Publish(context.Background(), nil))
	assert.Empty(t, w.msgs)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := NewPublisher(&recordingWriter{err: boom}, nil, nil)
	err := p.Publish(context.Background(), []models.MarketSnapshot{{Market: models.Market{ID: "x"}}})
	assert.ErrorIs(t, err, boom)
}
