// Package storage defines the catalog store the ingestion pass writes through.
// Backends live in the sqlite and postgres subpackages.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/yanboishere/MetaOdds/internal/hashutil"
	"github.com/yanboishere/MetaOdds/internal/models"
)

// ErrNotFound is returned by lookups for ids the store has never seen.
var ErrNotFound = errors.New("storage: not found")

// UpsertResult says what an Upsert did to the market row.
type UpsertResult int

const (
	Inserted UpsertResult = iota + 1
	Updated
	Unchanged
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	}
	return "unknown"
}

// Store persists the unified catalog.
//
// Upsert writes one market and its contracts in a single transaction keyed by
// their composite ids. Repeating a call with the same input leaves the rows as
// they were apart from the timestamps. Contracts missing from a later call are
// left in place; their last_seen_at stops advancing.
type Store interface {
	Upsert(ctx context.Context, m models.Market, contracts []models.Contract, seenAt time.Time) (UpsertResult, error)
	FindMarket(ctx context.Context, id string) (models.Market, error)
	ListContracts(ctx context.Context, marketID string) ([]models.Contract, error)
	ListHistory(ctx context.Context, marketID string, limit int) ([]models.MarketHistoryPoint, error)
	Ping(ctx context.Context) error
	Close() error
}

// ContentHash fingerprints everything an upsert writes except timestamps, so
// backends can tell an update from a re-sighting. Contract order does not matter.
func ContentHash(m models.Market, contracts []models.Contract) string {
	parts := []string{
		m.ID, m.Platform, m.PlatformMarketID, m.Title, m.Description,
		string(m.Category), strings.Join(m.Tags, "\x1f"), string(m.Status),
		hashutil.Time(m.ResolveTime), hashutil.Time(m.CloseTime), m.Currency,
		hashutil.Float(m.Metrics.Volume24h), hashutil.Float(m.Metrics.Volume7d),
		hashutil.Float(m.Metrics.OpenInterest), hashutil.Float(m.Metrics.FeeRate),
	}

	sorted := make([]models.Contract, len(contracts))
	copy(sorted, contracts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, c := range sorted {
		parts = append(parts,
			c.ID, c.Name,
			hashutil.Float(c.LastPrice), hashutil.Float(c.BestBid), hashutil.Float(c.BestAsk),
			hashutil.Float(c.ImpliedProb), hashutil.Float(c.OpenInterest), hashutil.Float(c.FeeRate),
		)
	}
	return hashutil.HashStrings(parts...)
}

// DefaultHistoryLimit caps ListHistory when the caller passes a non-positive limit.
const DefaultHistoryLimit = 500
