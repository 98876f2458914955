// Package config loads the service configuration from defaults, an optional
// YAML file, a local .env and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yanboishere/MetaOdds/internal/blob"
	"github.com/yanboishere/MetaOdds/internal/fetch"
	"github.com/yanboishere/MetaOdds/internal/kalshi"
	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/polymarket"
	"github.com/yanboishere/MetaOdds/internal/storage/backend"
	"github.com/yanboishere/MetaOdds/internal/storage/postgres"
)

type Config struct {
	RunIngestor bool            `mapstructure:"run_ingestor"`
	Log         LogConfig       `mapstructure:"log"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Fetch       FetchConfig     `mapstructure:"fetch"`
	Polymarket  SourceConfig    `mapstructure:"polymarket"`
	Kalshi      SourceConfig    `mapstructure:"kalshi"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Fixtures    FixturesConfig  `mapstructure:"fixtures"`
	Redis       RedisConfig     `mapstructure:"redis"`
	S3          S3Config        `mapstructure:"s3"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	HTTP        HTTPConfig      `mapstructure:"http"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Encoding    string `mapstructure:"encoding" validate:"oneof=json console"`
	Development bool   `mapstructure:"development"`
}

type SchedulerConfig struct {
	// Cron wins over Interval when both are set.
	Cron     string        `mapstructure:"cron"`
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
}

type FetchConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries          int           `mapstructure:"retries" validate:"gte=1,lte=10"`
	Backoff          time.Duration `mapstructure:"backoff" validate:"gte=0"`
	RateLimitBackoff time.Duration `mapstructure:"rate_limit_backoff" validate:"gte=0"`
	UserAgent        string        `mapstructure:"user_agent" validate:"required"`
	ProxyURL         string        `mapstructure:"proxy_url" validate:"omitempty,url"`
}

type SourceConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BaseURL   string `mapstructure:"base_url" validate:"required,url"`
	PageSize  int    `mapstructure:"page_size" validate:"gt=0"`
	MaxOffset int    `mapstructure:"max_offset" validate:"gte=0"`
	MaxPages  int    `mapstructure:"max_pages" validate:"gt=0"`
}

type StorageConfig struct {
	Driver     string         `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

type FixturesConfig struct {
	// Dir, when set, is tried after the last-known-good stores and before the bundled files.
	Dir string `mapstructure:"dir"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type S3Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Prefix         string `mapstructure:"prefix"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

type KafkaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Brokers    string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic      string `mapstructure:"topic" validate:"required"`
	Group      string `mapstructure:"group" validate:"required"`
	Partitions int    `mapstructure:"partitions" validate:"gt=0"`
	Workers    int    `mapstructure:"workers" validate:"gt=0"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// envAliases keeps the historic variable names working next to the derived ones.
var envAliases = map[string][]string{
	"run_ingestor":         {"RUN_INGESTOR"},
	"polymarket.base_url":  {"POLYMARKET_BASE_URL", "POLYMARKET_GAMMA_BASE"},
	"kalshi.base_url":      {"KALSHI_BASE_URL", "KALSHI_API_BASE"},
	"storage.sqlite_path":  {"STORAGE_SQLITE_PATH", "SQLITE_PATH"},
	"storage.postgres.dsn": {"STORAGE_POSTGRES_DSN", "DATABASE_URL"},
	"kafka.brokers":        {"KAFKA_BROKERS"},
	"redis.addr":           {"REDIS_ADDR"},
	"fetch.proxy_url":      {"FETCH_PROXY_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run_ingestor", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.development", false)

	v.SetDefault("scheduler.cron", "")
	v.SetDefault("scheduler.interval", "1m")

	v.SetDefault("fetch.timeout", fetch.DefaultTimeout.String())
	v.SetDefault("fetch.retries", fetch.DefaultRetries)
	v.SetDefault("fetch.backoff", fetch.DefaultBackoff.String())
	v.SetDefault("fetch.rate_limit_backoff", fetch.DefaultRateLimitBackoff.String())
	v.SetDefault("fetch.user_agent", fetch.DefaultUserAgent)
	v.SetDefault("fetch.proxy_url", "")

	v.SetDefault("polymarket.enabled", true)
	v.SetDefault("polymarket.base_url", polymarket.DefaultBaseURL)
	v.SetDefault("polymarket.page_size", polymarket.DefaultPageSize)
	v.SetDefault("polymarket.max_offset", 2000)
	v.SetDefault("polymarket.max_pages", 50)

	v.SetDefault("kalshi.enabled", true)
	v.SetDefault("kalshi.base_url", kalshi.DefaultBaseURL)
	v.SetDefault("kalshi.page_size", kalshi.DefaultPageSize)
	v.SetDefault("kalshi.max_offset", 0)
	v.SetDefault("kalshi.max_pages", 50)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "data/metaodds.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.database", "metaodds")
	v.SetDefault("storage.postgres.user", "metaodds")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.max_conns", 10)
	v.SetDefault("storage.postgres.min_conns", 1)

	v.SetDefault("fixtures.dir", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "72h")
	v.SetDefault("redis.prefix", "metaodds:lkg")

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "metaodds/lkg")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.force_path_style", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "metaodds.markets")
	v.SetDefault("kafka.group", "metaodds-catalog-mirror")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.workers", 3)

	v.SetDefault("http.addr", ":8080")
}

// Load reads configuration. path may be empty, in which case ./metaodds.yaml is
// used when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("metaodds")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read metaodds.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, Encoding: c.Encoding, Development: c.Development}
}

func (c FetchConfig) Fetcher() fetch.Config {
	return fetch.Config{
		Timeout:          c.Timeout,
		Retries:          c.Retries,
		Backoff:          c.Backoff,
		RateLimitBackoff: c.RateLimitBackoff,
		UserAgent:        c.UserAgent,
		ProxyURL:         c.ProxyURL,
	}
}

func (c SourceConfig) PolymarketClient() polymarket.Config {
	return polymarket.Config{BaseURL: c.BaseURL, PageSize: c.PageSize, MaxOffset: c.MaxOffset, MaxPages: c.MaxPages}
}

func (c SourceConfig) KalshiClient() kalshi.Config {
	return kalshi.Config{BaseURL: c.BaseURL, PageSize: c.PageSize, MaxPages: c.MaxPages}
}

func (c StorageConfig) Backend() backend.Options {
	return backend.Options{Driver: c.Driver, SQLitePath: c.SQLitePath, Postgres: c.Postgres.Client()}
}

func (c PostgresConfig) Client() postgres.ClientConfig {
	return postgres.ClientConfig{
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		SSLMode:  c.SSLMode,
		MaxConns: c.MaxConns,
		MinConns: c.MinConns,
	}
}

func (c S3Config) Client() blob.ClientConfig {
	return blob.ClientConfig{
		Endpoint:       c.Endpoint,
		Region:         c.Region,
		Bucket:         c.Bucket,
		Prefix:         c.Prefix,
		AccessKey:      c.AccessKey,
		SecretKey:      c.SecretKey,
		UseSSL:         c.UseSSL,
		ForcePathStyle: c.ForcePathStyle,
	}
}
