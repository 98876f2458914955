package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanboishere/MetaOdds/internal/blob"
	"github.com/yanboishere/MetaOdds/internal/cache"
	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/config"
	"github.com/yanboishere/MetaOdds/internal/fetch"
	"github.com/yanboishere/MetaOdds/internal/fixtures"
	"github.com/yanboishere/MetaOdds/internal/ingest"
	"github.com/yanboishere/MetaOdds/internal/kafka"
	"github.com/yanboishere/MetaOdds/internal/kalshi"
	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/metrics"
	"github.com/yanboishere/MetaOdds/internal/polymarket"
	"github.com/yanboishere/MetaOdds/internal/queue"
	"github.com/yanboishere/MetaOdds/internal/scheduler"
	"github.com/yanboishere/MetaOdds/internal/server"
	"github.com/yanboishere/MetaOdds/internal/storage/backend"
)

const brokerWait = 45 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file (default ./metaodds.yaml when present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Logging())
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("ingestor failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	m := metrics.New()

	store, err := backend.Open(ctx, cfg.Storage.Backend())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	fetcher, err := fetch.New(cfg.Fetch.Fetcher(), fetch.WithLogger(logger), fetch.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("build fetcher: %w", err)
	}

	var sources []collectors.Collector
	if cfg.Polymarket.Enabled {
		sources = append(sources, polymarket.NewClient(fetcher, cfg.Polymarket.PolymarketClient()))
	}
	if cfg.Kalshi.Enabled {
		sources = append(sources, kalshi.NewClient(fetcher, cfg.Kalshi.KalshiClient()))
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources enabled")
	}

	chain, savers, closeSnapshots, err := snapshotStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	pipeline := &ingest.Pipeline{
		Collectors: sources,
		Fixtures:   chain,
		Snapshots:  savers,
		Store:      store,
		Logger:     logger,
		Metrics:    m,
	}

	if cfg.Kafka.Enabled {
		pub, err := publisher(ctx, cfg.Kafka, logger, m)
		if err != nil {
			return err
		}
		defer pub.Close()
		pipeline.Publisher = pub
	}

	sched := scheduler.New(func(ctx context.Context) error {
		_, err := pipeline.RunPass(ctx)
		return err
	}, logger, m)

	if !cfg.RunIngestor {
		logger.Info("running a single pass", zap.Int("sources", len(sources)))
		_, err := sched.RunOnce(ctx)
		return err
	}

	clock, err := scheduler.NewClock(cfg.Scheduler.Cron, cfg.Scheduler.Interval)
	if err != nil {
		return err
	}
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	ops := &server.Server{
		Store:     store,
		Passes:    pipeline,
		Scheduler: sched,
		Metrics:   m,
		Logger:    logger,
	}

	logger.Info("ingestor started",
		zap.String("cron", cfg.Scheduler.Cron),
		zap.Duration("interval", cfg.Scheduler.Interval),
		zap.String("http_addr", cfg.HTTP.Addr),
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx, clock) })
	g.Go(func() error { return ops.Run(gctx, cfg.HTTP.Addr) })
	return g.Wait()
}

// snapshotStores builds the fixture chain (redis, S3, dir, bundled) and the
// last-known-good savers.
func snapshotStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*fixtures.Chain, fixtures.Savers, func(), error) {
	var (
		loaders []fixtures.Loader
		savers  fixtures.Savers
		closers []func() error
	)

	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisSnapshotCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, cfg.Redis.Prefix)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis snapshot cache: %w", err)
		}
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, last-known-good snapshots may be missing", zap.Error(err))
		}
		loaders = append(loaders, rc)
		savers = append(savers, rc)
		closers = append(closers, rc.Close)
	}
	if cfg.S3.Enabled {
		bs, err := blob.New(ctx, cfg.S3.Client())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("s3 snapshot store: %w", err)
		}
		if err := bs.Health(ctx); err != nil {
			logger.Warn("s3 bucket unreachable, last-known-good snapshots may be missing", zap.Error(err))
		}
		loaders = append(loaders, bs)
		savers = append(savers, bs)
	}
	if cfg.Fixtures.Dir != "" {
		loaders = append(loaders, fixtures.Dir(cfg.Fixtures.Dir))
	}
	loaders = append(loaders, fixtures.Bundled())

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close snapshot store", zap.Error(err))
			}
		}
	}
	return fixtures.NewChain(logger, loaders...), savers, closeAll, nil
}

func publisher(ctx context.Context, cfg config.KafkaConfig, logger *zap.Logger, m *metrics.Recorder) (*queue.Publisher, error) {
	brokers := kafka.Brokers(cfg.Brokers)
	waitCtx, cancel := context.WithTimeout(ctx, brokerWait)
	defer cancel()
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		return nil, fmt.Errorf("wait for kafka: %w", err)
	}
	if err := kafka.EnsureTopic(ctx, brokers, cfg.Topic, cfg.Partitions); err != nil {
		logger.Warn("ensure topic failed", zap.String("topic", cfg.Topic), zap.Error(err))
	}
	return queue.NewPublisher(kafka.NewWriter(brokers, cfg.Topic), logger, m), nil
}
