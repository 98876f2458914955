package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yanboishere/MetaOdds/internal/models"
	"github.com/yanboishere/MetaOdds/internal/storage"
)

// AppendHistory records price samples. Ingestion never calls it; the charting
// job that owns market_history does.
func (s *Store) AppendHistory(ctx context.Context, points []models.MarketHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO market_history (market_id, contract_name, ts, price, volume)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(market_id, contract_name, ts) DO UPDATE SET
	price=excluded.price,
	volume=excluded.volume;`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.MarketID, p.ContractName, formatTime(p.TS), nullFloat(p.Price), nullFloat(p.Volume)); err != nil {
			return fmt.Errorf("insert history for %s: %w", p.MarketID, err)
		}
	}
	return tx.Commit()
}

// ListHistory returns up to limit samples for a market, newest first.
func (s *Store) ListHistory(ctx context.Context, marketID string, limit int) ([]models.MarketHistoryPoint, error) {
	if limit <= 0 {
		limit = storage.DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT market_id, contract_name, ts, price, volume
FROM market_history WHERE market_id = ?
ORDER BY ts DESC LIMIT ?`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []models.MarketHistoryPoint
	for rows.Next() {
		var (
			p             models.MarketHistoryPoint
			ts            string
			price, volume sql.NullFloat64
		)
		if err := rows.Scan(&p.MarketID, &p.ContractName, &ts, &price, &volume); err != nil {
			return nil, err
		}
		if p.TS, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("decode ts for %s: %w", marketID, err)
		}
		p.Price, p.Volume = floatPtr(price), floatPtr(volume)
		out = append(out, p)
	}
	return out, rows.Err()
}
