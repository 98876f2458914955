// Package fixtures supplies the records a pass falls back to when a venue
// cannot be fetched: last-known-good snapshots first, then the bundled files.
package fixtures

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/logging"
)

// ErrNoSnapshot means a loader has nothing stored for the venue.
var ErrNoSnapshot = errors.New("fixtures: no snapshot")

//go:embed data/*.json
var bundledFS embed.FS

// Loader returns a stored snapshot of a venue's records.
type Loader interface {
	Name() string
	Load(ctx context.Context, venue collectors.Venue) ([]collectors.Record, error)
}

// Saver stores the records of a successful live fetch.
type Saver interface {
	Save(ctx context.Context, venue collectors.Venue, records []collectors.Record) error
}

// Encode is the snapshot wire format shared by every loader and saver.
func Encode(records []collectors.Record) ([]byte, error) {
	if records == nil {
		records = []collectors.Record{}
	}
	return json.Marshal(records)
}

// Decode parses a snapshot. Records missing a platform take the venue's.
func Decode(venue collectors.Venue, data []byte) ([]collectors.Record, error) {
	var records []collectors.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", venue, err)
	}
	for i := range records {
		if records[i].Platform == "" {
			records[i].Platform = venue
		}
	}
	return records, nil
}

type fsLoader struct {
	name string
	fsys fs.FS
}

// Bundled serves the snapshots compiled into the binary (data/<venue>.json).
func Bundled() Loader {
	sub, err := fs.Sub(bundledFS, "data")
	if err != nil {
		panic(err)
	}
	return &fsLoader{name: "bundled", fsys: sub}
}

// Dir serves <dir>/<venue>.json from disk, for operators shipping their own fixtures.
func Dir(dir string) Loader {
	return &fsLoader{name: "dir:" + dir, fsys: os.DirFS(filepath.Clean(dir))}
}

func (l *fsLoader) Name() string { return l.name }

func (l *fsLoader) Load(_ context.Context, venue collectors.Venue) ([]collectors.Record, error) {
	data, err := fs.ReadFile(l.fsys, string(venue)+".json")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read %s fixture: %w", venue, err)
	}
	return Decode(venue, data)
}

// Chain tries each loader in order and returns the first non-empty snapshot.
type Chain struct {
	loaders []Loader
	logger  *zap.Logger
}

func NewChain(logger *zap.Logger, loaders ...Loader) *Chain {
	return &Chain{loaders: loaders, logger: logging.OrNop(logger).Named("fixtures")}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Load(ctx context.Context, venue collectors.Venue) ([]collectors.Record, error) {
	for _, l := range c.loaders {
		records, err := l.Load(ctx, venue)
		switch {
		case errors.Is(err, ErrNoSnapshot):
			continue
		case err != nil:
			c.logger.Warn("fixture loader failed",
				zap.String("loader", l.Name()),
				zap.String("venue", string(venue)),
				zap.Error(err),
			)
			continue
		case len(records) == 0:
			continue
		}
		c.logger.Info("serving fixture",
			zap.String("loader", l.Name()),
			zap.String("venue", string(venue)),
			zap.Int("records", len(records)),
		)
		return records, nil
	}
	return nil, fmt.Errorf("%w for %s", ErrNoSnapshot, venue)
}

// Savers fans a snapshot out to several stores and joins their errors.
type Savers []Saver

func (s Savers) Save(ctx context.Context, venue collectors.Venue, records []collectors.Record) error {
	var errs []error
	for _, saver := range s {
		if err := saver.Save(ctx, venue, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
