package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yanboishere/MetaOdds/internal/storage"
)

const (
	defaultPath = "data/metaodds.db"

	// Fixed width so TEXT ordering matches time ordering.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

var _ storage.Store = (*Store)(nil)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database, then applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	s := &Store{path: path, db: db}
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the catalog tables exist.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, catalogSchemaSQL)
	return err
}

// DropTables removes the catalog tables.
func (s *Store) DropTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
DROP TABLE IF EXISTS market_history;
DROP TABLE IF EXISTS contracts;
DROP TABLE IF EXISTS markets;`)
	return err
}

// ClearTables deletes every row but keeps the schema.
func (s *Store) ClearTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM market_history;
DELETE FROM contracts;
DELETE FROM markets;`)
	return err
}

const catalogSchemaSQL = `
CREATE TABLE IF NOT EXISTS markets (
	id TEXT PRIMARY KEY,
	platform TEXT NOT NULL,
	platform_market_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	tags_json TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	resolve_time TEXT,
	close_time TEXT,
	currency TEXT NOT NULL,
	volume_24h REAL,
	volume_7d REAL,
	open_interest REAL,
	fee_rate REAL,
	content_hash TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_seen_at TEXT NOT NULL,
	UNIQUE (platform, platform_market_id)
);
CREATE INDEX IF NOT EXISTS markets_category_status_idx ON markets(category, status);

CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	market_id TEXT NOT NULL REFERENCES markets(id),
	name TEXT NOT NULL,
	last_price REAL,
	best_bid REAL,
	best_ask REAL,
	implied_prob REAL,
	open_interest REAL,
	fee_rate REAL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_seen_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS contracts_market_idx ON contracts(market_id);

CREATE TABLE IF NOT EXISTS market_history (
	market_id TEXT NOT NULL,
	contract_name TEXT NOT NULL DEFAULT '',
	ts TEXT NOT NULL,
	price REAL,
	volume REAL,
	PRIMARY KEY (market_id, contract_name, ts)
);
`

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(tsLayout, raw)
}

func timePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
