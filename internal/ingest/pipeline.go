// Package ingest runs one ingestion pass: fetch every source, fall back to a
// fixture when a source is down, normalize, upsert and publish what changed.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/fixtures"
	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/metrics"
	"github.com/yanboishere/MetaOdds/internal/models"
	"github.com/yanboishere/MetaOdds/internal/normalize"
	"github.com/yanboishere/MetaOdds/internal/storage"
)

// Publisher receives the snapshots of markets a pass inserted or changed.
type Publisher interface {
	Publish(ctx context.Context, snapshots []models.MarketSnapshot) error
}

// SourceResult counts what a pass did with one source.
type SourceResult struct {
	Source     collectors.Venue `json:"source"`
	Origin     models.Origin    `json:"origin,omitempty"`
	Records    int              `json:"records"`
	Inserted   int              `json:"inserted"`
	Updated    int              `json:"updated"`
	Unchanged  int              `json:"unchanged"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	FetchError string           `json:"fetch_error,omitempty"`
}

// PassResult summarizes a finished pass.
type PassResult struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Sources      []SourceResult `json:"sources"`
	Published    int            `json:"published"`
	PublishError string         `json:"publish_error,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Pipeline wires the pass together. Collectors run in order; Fixtures,
// Snapshots and Publisher are optional.
type Pipeline struct {
	Collectors []collectors.Collector
	Fixtures   fixtures.Loader
	Snapshots  fixtures.Saver
	Store      storage.Store
	Publisher  Publisher
	Logger     *zap.Logger
	Metrics    *metrics.Recorder
	Now        func() time.Time

	mu   sync.RWMutex
	last *PassResult
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// RunPass processes every source once. The error is non-nil only when a source
// produced neither live records nor a fixture; everything else is logged,
// counted and reflected in the result.
func (p *Pipeline) RunPass(ctx context.Context) (PassResult, error) {
	logger := logging.OrNop(p.Logger).Named("ingest")
	res := PassResult{RunID: uuid.NewString(), StartedAt: p.now()}
	logger = logger.With(zap.String("run_id", res.RunID))
	logger.Info("pass started", zap.Int("sources", len(p.Collectors)))

	var (
		errs      []error
		snapshots []models.MarketSnapshot
	)
	for _, c := range p.Collectors {
		sr, snaps, err := p.runSource(ctx, logger, res.RunID, res.StartedAt, c)
		res.Sources = append(res.Sources, sr)
		snapshots = append(snapshots, snaps...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if p.Publisher != nil && len(snapshots) > 0 {
		if err := p.Publisher.Publish(ctx, snapshots); err != nil {
			res.PublishError = err.Error()
			logger.Warn("publish failed", zap.Int("snapshots", len(snapshots)), zap.Error(err))
		} else {
			res.Published = len(snapshots)
		}
	}

	err := errors.Join(errs...)
	res.FinishedAt = p.now()
	status := "ok"
	if err != nil {
		res.Error = err.Error()
		status = "failed"
	}
	p.Metrics.RecordPass(status, res.FinishedAt.Sub(res.StartedAt).Seconds())
	logger.Info("pass finished",
		zap.String("status", status),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
		zap.Int("published", res.Published),
	)

	p.mu.Lock()
	last := res
	p.last = &last
	p.mu.Unlock()
	return res, err
}

func (p *Pipeline) runSource(ctx context.Context, logger *zap.Logger, runID string, seenAt time.Time, c collectors.Collector) (SourceResult, []models.MarketSnapshot, error) {
	venue := c.Name()
	sr := SourceResult{Source: venue}
	logger = logger.With(zap.String("source", string(venue)))

	records, origin, err := p.fetch(ctx, logger, c)
	if err != nil {
		sr.FetchError = err.Error()
		return sr, nil, fmt.Errorf("source %s: %w", venue, err)
	}
	sr.Origin = origin
	sr.Records = len(records)
	p.Metrics.RecordSourceRecords(string(venue), string(origin), len(records))
	if origin == models.OriginFixture {
		sr.FetchError = "live fetch failed, fixture served"
	}

	var snapshots []models.MarketSnapshot
	for _, r := range records {
		if !normalize.Valid(r) {
			sr.Skipped++
			logger.Warn("skipping record without an id", zap.String("title", r.Title))
			continue
		}
		m, contracts := normalize.Record(r)
		result, err := p.Store.Upsert(ctx, m, contracts, seenAt)
		if err != nil {
			sr.Failed++
			p.Metrics.RecordUpsert("failed")
			logger.Error("upsert failed", zap.String("market_id", m.ID), zap.Error(err))
			continue
		}
		p.Metrics.RecordUpsert(result.String())
		switch result {
		case storage.Inserted:
			sr.Inserted++
		case storage.Updated:
			sr.Updated++
		default:
			sr.Unchanged++
			continue
		}
		snapshots = append(snapshots, models.NewSnapshot(runID, origin, m, contracts, seenAt))
	}

	logger.Info("source done",
		zap.String("origin", string(origin)),
		zap.Int("records", sr.Records),
		zap.Int("inserted", sr.Inserted),
		zap.Int("updated", sr.Updated),
		zap.Int("unchanged", sr.Unchanged),
		zap.Int("failed", sr.Failed),
	)
	return sr, snapshots, nil
}

// fetch returns live records, or the fixture when the live fetch failed.
func (p *Pipeline) fetch(ctx context.Context, logger *zap.Logger, c collectors.Collector) ([]collectors.Record, models.Origin, error) {
	venue := c.Name()
	records, fetchErr := c.FetchAll(ctx)
	if fetchErr == nil {
		if p.Snapshots != nil && len(records) > 0 {
			if err := p.Snapshots.Save(ctx, venue, records); err != nil {
				logger.Warn("saving last-known-good snapshot failed", zap.Error(err))
			}
		}
		return records, models.OriginLive, nil
	}

	logger.Warn("live fetch failed, using fixtures", zap.Error(fetchErr))
	if p.Fixtures == nil {
		return nil, "", fmt.Errorf("fetch failed and no fixtures configured: %w", fetchErr)
	}
	records, err := p.Fixtures.Load(ctx, venue)
	if err != nil {
		return nil, "", fmt.Errorf("fetch failed (%v) and fixture unavailable: %w", fetchErr, err)
	}
	return records, models.OriginFixture, nil
}

// LastResult returns the most recent finished pass.
func (p *Pipeline) LastResult() (PassResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return PassResult{}, false
	}
	return *p.last, true
}
