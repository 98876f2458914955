package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanboishere/MetaOdds/internal/models"
	"github.com/yanboishere/MetaOdds/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool. Call RunMigrations first.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects, migrates and returns a ready store.
func Open(ctx context.Context, cfg ClientConfig) (*Store, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Upsert writes a market and its contracts in one transaction.
func (s *Store) Upsert(ctx context.Context, m models.Market, contracts []models.Contract, seenAt time.Time) (storage.UpsertResult, error) {
	hash := storage.ContentHash(m, contracts)
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	seenAt = seenAt.UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin upsert %s: %w", m.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result := storage.Inserted
	var prevHash string
	switch err := tx.QueryRow(ctx, `SELECT content_hash FROM markets WHERE id = $1 FOR UPDATE`, m.ID).Scan(&prevHash); {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return 0, fmt.Errorf("postgres: read market %s: %w", m.ID, err)
	case prevHash == hash:
		result = storage.Unchanged
	default:
		result = storage.Updated
	}

	const marketQuery = `
		INSERT INTO markets (
			id, platform, platform_market_id, title, description, category, tags, status,
			resolve_time, close_time, currency, volume_24h, volume_7d, open_interest, fee_rate,
			content_hash, created_at, updated_at, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15,
			$16, $17, $17, $17
		)
		ON CONFLICT (id) DO UPDATE SET
			title         = EXCLUDED.title,
			description   = EXCLUDED.description,
			category      = EXCLUDED.category,
			tags          = EXCLUDED.tags,
			status        = EXCLUDED.status,
			resolve_time  = EXCLUDED.resolve_time,
			close_time    = EXCLUDED.close_time,
			currency      = EXCLUDED.currency,
			volume_24h    = EXCLUDED.volume_24h,
			volume_7d     = EXCLUDED.volume_7d,
			open_interest = EXCLUDED.open_interest,
			fee_rate      = EXCLUDED.fee_rate,
			content_hash  = EXCLUDED.content_hash,
			updated_at    = EXCLUDED.updated_at,
			last_seen_at  = EXCLUDED.last_seen_at`
	if _, err := tx.Exec(ctx, marketQuery,
		m.ID, m.Platform, m.PlatformMarketID, m.Title, m.Description, string(m.Category), tags, string(m.Status),
		m.ResolveTime, m.CloseTime, m.Currency,
		m.Metrics.Volume24h, m.Metrics.Volume7d, m.Metrics.OpenInterest, m.Metrics.FeeRate,
		hash, seenAt,
	); err != nil {
		return 0, fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}

	if len(contracts) > 0 {
		const contractQuery = `
			INSERT INTO contracts (
				id, market_id, name, last_price, best_bid, best_ask, implied_prob, open_interest, fee_rate,
				created_at, updated_at, last_seen_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $10)
			ON CONFLICT (id) DO UPDATE SET
				name          = EXCLUDED.name,
				last_price    = EXCLUDED.last_price,
				best_bid      = EXCLUDED.best_bid,
				best_ask      = EXCLUDED.best_ask,
				implied_prob  = EXCLUDED.implied_prob,
				open_interest = EXCLUDED.open_interest,
				fee_rate      = EXCLUDED.fee_rate,
				updated_at    = EXCLUDED.updated_at,
				last_seen_at  = EXCLUDED.last_seen_at`

		batch := &pgx.Batch{}
		for _, c := range contracts {
			batch.Queue(contractQuery,
				c.ID, m.ID, c.Name, c.LastPrice, c.BestBid, c.BestAsk, c.ImpliedProb, c.OpenInterest, c.FeeRate,
				seenAt,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range contracts {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, fmt.Errorf("postgres: upsert contract %s: %w", contracts[i].ID, err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("postgres: close contract batch for %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit market %s: %w", m.ID, err)
	}
	return result, nil
}

const marketCols = `id, platform, platform_market_id, title, description, category, tags, status,
	resolve_time, close_time, currency, volume_24h, volume_7d, open_interest, fee_rate,
	created_at, updated_at, last_seen_at`

// FindMarket retrieves a market by its composite id.
func (s *Store) FindMarket(ctx context.Context, id string) (models.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)

	var (
		m                models.Market
		category, status string
	)
	err := row.Scan(
		&m.ID, &m.Platform, &m.PlatformMarketID, &m.Title, &m.Description, &category, &m.Tags, &status,
		&m.ResolveTime, &m.CloseTime, &m.Currency,
		&m.Metrics.Volume24h, &m.Metrics.Volume7d, &m.Metrics.OpenInterest, &m.Metrics.FeeRate,
		&m.CreatedAt, &m.UpdatedAt, &m.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Market{}, storage.ErrNotFound
		}
		return models.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	m.Category = models.Category(category)
	m.Status = models.Status(status)
	return m, nil
}

// ListContracts returns a market's contracts ordered by id.
func (s *Store) ListContracts(ctx context.Context, marketID string) ([]models.Contract, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, market_id, name, last_price, best_bid, best_ask, implied_prob, open_interest, fee_rate,
			updated_at, last_seen_at
		FROM contracts WHERE market_id = $1 ORDER BY id`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list contracts for %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		var c models.Contract
		if err := rows.Scan(
			&c.ID, &c.MarketID, &c.Name, &c.LastPrice, &c.BestBid, &c.BestAsk, &c.ImpliedProb,
			&c.OpenInterest, &c.FeeRate, &c.UpdatedAt, &c.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListHistory returns up to limit samples for a market, newest first.
func (s *Store) ListHistory(ctx context.Context, marketID string, limit int) ([]models.MarketHistoryPoint, error) {
	if limit <= 0 {
		limit = storage.DefaultHistoryLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, contract_name, ts, price, volume
		FROM market_history WHERE market_id = $1
		ORDER BY ts DESC LIMIT $2`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history for %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []models.MarketHistoryPoint
	for rows.Next() {
		var p models.MarketHistoryPoint
		if err := rows.Scan(&p.MarketID, &p.ContractName, &p.TS, &p.Price, &p.Volume); err != nil {
			return nil, fmt.Errorf("postgres: scan history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AppendHistory records price samples for the charting job.
func (s *Store) AppendHistory(ctx context.Context, points []models.MarketHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO market_history (market_id, contract_name, ts, price, volume)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (market_id, contract_name, ts) DO UPDATE SET
				price  = EXCLUDED.price,
				volume = EXCLUDED.volume`,
			p.MarketID, p.ContractName, p.TS.UTC(), p.Price, p.Volume,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append history: %w", err)
		}
	}
	return nil
}
