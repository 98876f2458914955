package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.RunIngestor)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 8*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Fetch.Retries)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Polymarket.BaseURL)
	assert.Equal(t, 100, cfg.Polymarket.PageSize)
	assert.Equal(t, 2000, cfg.Polymarket.MaxOffset)
	assert.Equal(t, "https://api.elections.kalshi.com/trade-api/v2", cfg.Kalshi.BaseURL)
	assert.Equal(t, 1000, cfg.Kalshi.PageSize)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "data/metaodds.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 72*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "metaodds.markets", cfg.Kafka.Topic)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadHistoricEnvNames(t *testing.T) {
	t.Setenv("RUN_INGESTOR", "1")
	t.Setenv("POLYMARKET_GAMMA_BASE", "https://gamma.example.com")
	t.Setenv("KALSHI_API_BASE", "https://kalshi.example.com/v2")
	t.Setenv("SQLITE_PATH", "/tmp/catalog.db")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.RunIngestor)
	assert.Equal(t, "https://gamma.example.com", cfg.Polymarket.BaseURL)
	assert.Equal(t, "https://kalshi.example.com/v2", cfg.Kalshi.BaseURL)
	assert.Equal(t, "/tmp/catalog.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "k1:9092,k2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoadDerivedEnvNames(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("SCHEDULER_CRON", "@every 30s")
	t.Setenv("POLYMARKET_PAGE_SIZE", "50")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "@every 30s", cfg.Scheduler.Cron)
	assert.Equal(t, 50, cfg.Polymarket.PageSize)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metaodds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: warn
storage:
  driver: postgres
  postgres:
    dsn: postgres://u:p@db:5432/metaodds
kafka:
  enabled: true
  brokers: broker:9092
s3:
  enabled: true
  bucket: catalog
`), 0o644))
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/metaodds", cfg.Storage.Postgres.Client().DSN)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "broker:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "catalog", cfg.S3.Client().Bucket)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mysql")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestLoadRequiresBucketWhenS3Enabled(t *testing.T) {
	t.Setenv("S3_ENABLED", "true")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bucket")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConverters(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	fc := cfg.Fetch.Fetcher()
	assert.Equal(t, cfg.Fetch.Timeout, fc.Timeout)
	assert.Equal(t, cfg.Fetch.UserAgent, fc.UserAgent)

	pc := cfg.Polymarket.PolymarketClient()
	assert.Equal(t, cfg.Polymarket.BaseURL, pc.BaseURL)
	assert.Equal(t, cfg.Polymarket.MaxOffset, pc.MaxOffset)

	kc := cfg.Kalshi.KalshiClient()
	assert.Equal(t, cfg.Kalshi.PageSize, kc.PageSize)

	lc := cfg.Log.Logging()
	assert.Equal(t, "json", lc.Encoding)
}
