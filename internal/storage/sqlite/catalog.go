package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yanboishere/MetaOdds/internal/models"
	"github.com/yanboishere/MetaOdds/internal/storage"
)

const marketUpsertSQL = `
INSERT INTO markets (
	id, platform, platform_market_id, title, description, category, tags_json, status,
	resolve_time, close_time, currency, volume_24h, volume_7d, open_interest, fee_rate,
	content_hash, created_at, updated_at, last_seen_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	title=excluded.title,
	description=excluded.description,
	category=excluded.category,
	tags_json=excluded.tags_json,
	status=excluded.status,
	resolve_time=excluded.resolve_time,
	close_time=excluded.close_time,
	currency=excluded.currency,
	volume_24h=excluded.volume_24h,
	volume_7d=excluded.volume_7d,
	open_interest=excluded.open_interest,
	fee_rate=excluded.fee_rate,
	content_hash=excluded.content_hash,
	updated_at=excluded.updated_at,
	last_seen_at=excluded.last_seen_at;
`

const contractUpsertSQL = `
INSERT INTO contracts (
	id, market_id, name, last_price, best_bid, best_ask, implied_prob, open_interest, fee_rate,
	created_at, updated_at, last_seen_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	name=excluded.name,
	last_price=excluded.last_price,
	best_bid=excluded.best_bid,
	best_ask=excluded.best_ask,
	implied_prob=excluded.implied_prob,
	open_interest=excluded.open_interest,
	fee_rate=excluded.fee_rate,
	updated_at=excluded.updated_at,
	last_seen_at=excluded.last_seen_at;
`

// Upsert writes a market and its contracts in one transaction.
func (s *Store) Upsert(ctx context.Context, m models.Market, contracts []models.Contract, seenAt time.Time) (storage.UpsertResult, error) {
	hash := storage.ContentHash(m, contracts)
	tagsJSON, err := json.Marshal(nonNilTags(m.Tags))
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}
	ts := formatTime(seenAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result := storage.Inserted
	var prevHash string
	switch err := tx.QueryRowContext(ctx, `SELECT content_hash FROM markets WHERE id = ?`, m.ID).Scan(&prevHash); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, fmt.Errorf("read market %s: %w", m.ID, err)
	case prevHash == hash:
		result = storage.Unchanged
	default:
		result = storage.Updated
	}

	if _, err := tx.ExecContext(ctx, marketUpsertSQL,
		m.ID, m.Platform, m.PlatformMarketID, m.Title, m.Description, string(m.Category),
		string(tagsJSON), string(m.Status), nullTime(m.ResolveTime), nullTime(m.CloseTime),
		m.Currency, nullFloat(m.Metrics.Volume24h), nullFloat(m.Metrics.Volume7d),
		nullFloat(m.Metrics.OpenInterest), nullFloat(m.Metrics.FeeRate),
		hash, ts, ts, ts,
	); err != nil {
		return 0, fmt.Errorf("upsert market %s: %w", m.ID, err)
	}

	if len(contracts) > 0 {
		stmt, err := tx.PrepareContext(ctx, contractUpsertSQL)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()
		for _, c := range contracts {
			if _, err := stmt.ExecContext(ctx,
				c.ID, m.ID, c.Name, nullFloat(c.LastPrice), nullFloat(c.BestBid), nullFloat(c.BestAsk),
				nullFloat(c.ImpliedProb), nullFloat(c.OpenInterest), nullFloat(c.FeeRate),
				ts, ts, ts,
			); err != nil {
				return 0, fmt.Errorf("upsert contract %s: %w", c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit market %s: %w", m.ID, err)
	}
	return result, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

const marketCols = `id, platform, platform_market_id, title, description, category, tags_json, status,
	resolve_time, close_time, currency, volume_24h, volume_7d, open_interest, fee_rate,
	created_at, updated_at, last_seen_at`

// FindMarket returns the market stored under id, or storage.ErrNotFound.
func (s *Store) FindMarket(ctx context.Context, id string) (models.Market, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+marketCols+` FROM markets WHERE id = ?`, id)

	var (
		m                              models.Market
		category, status, tagsJSON     string
		resolve, closeAt               sql.NullString
		vol24, vol7, oi, fee           sql.NullFloat64
		createdAt, updatedAt, lastSeen string
	)
	err := row.Scan(&m.ID, &m.Platform, &m.PlatformMarketID, &m.Title, &m.Description, &category,
		&tagsJSON, &status, &resolve, &closeAt, &m.Currency, &vol24, &vol7, &oi, &fee,
		&createdAt, &updatedAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Market{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Market{}, fmt.Errorf("find market %s: %w", id, err)
	}

	m.Category = models.Category(category)
	m.Status = models.Status(status)
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return models.Market{}, fmt.Errorf("decode tags for %s: %w", id, err)
	}
	m.Metrics = models.Metrics{
		Volume24h:    floatPtr(vol24),
		Volume7d:     floatPtr(vol7),
		OpenInterest: floatPtr(oi),
		FeeRate:      floatPtr(fee),
	}
	if m.ResolveTime, err = timePtr(resolve); err != nil {
		return models.Market{}, fmt.Errorf("decode resolve_time for %s: %w", id, err)
	}
	if m.CloseTime, err = timePtr(closeAt); err != nil {
		return models.Market{}, fmt.Errorf("decode close_time for %s: %w", id, err)
	}
	if err := scanTimes([]string{createdAt, updatedAt, lastSeen}, &m.CreatedAt, &m.UpdatedAt, &m.LastSeenAt); err != nil {
		return models.Market{}, fmt.Errorf("decode timestamps for %s: %w", id, err)
	}
	return m, nil
}

// ListContracts returns a market's contracts ordered by id. Contracts whose
// last_seen_at trails the market's were not in the latest sighting.
func (s *Store) ListContracts(ctx context.Context, marketID string) ([]models.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, market_id, name, last_price, best_bid, best_ask, implied_prob, open_interest, fee_rate,
	updated_at, last_seen_at
FROM contracts WHERE market_id = ? ORDER BY id`, marketID)
	if err != nil {
		return nil, fmt.Errorf("list contracts for %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		var (
			c                      models.Contract
			last, bid, ask, ip     sql.NullFloat64
			oi, fee                sql.NullFloat64
			updatedAt, lastSeenRaw string
		)
		if err := rows.Scan(&c.ID, &c.MarketID, &c.Name, &last, &bid, &ask, &ip, &oi, &fee, &updatedAt, &lastSeenRaw); err != nil {
			return nil, err
		}
		c.LastPrice, c.BestBid, c.BestAsk = floatPtr(last), floatPtr(bid), floatPtr(ask)
		c.ImpliedProb, c.OpenInterest, c.FeeRate = floatPtr(ip), floatPtr(oi), floatPtr(fee)
		if err := scanTimes([]string{updatedAt, lastSeenRaw}, &c.UpdatedAt, &c.LastSeenAt); err != nil {
			return nil, fmt.Errorf("decode timestamps for %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanTimes(raw []string, dst ...*time.Time) error {
	for i, r := range raw {
		t, err := parseTime(r)
		if err != nil {
			return err
		}
		*dst[i] = t
	}
	return nil
}
