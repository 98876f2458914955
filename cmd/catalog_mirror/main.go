package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yanboishere/MetaOdds/internal/config"
	"github.com/yanboishere/MetaOdds/internal/kafka"
	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/metrics"
	"github.com/yanboishere/MetaOdds/internal/storage/backend"
	"github.com/yanboishere/MetaOdds/internal/workers"
)

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
	logger = logger.Named("mirror")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	replica, err := backend.Open(ctx, cfg.Storage.Backend())
	if err != nil {
		logger.Fatal("open replica store", zap.Error(err))
	}
	defer replica.Close()

	brokers := kafka.Brokers(cfg.Kafka.Brokers)
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		cancel()
		logger.Fatal("wait for broker", zap.Error(err))
	}
	cancel()

	pool := &workers.Pool{
		Brokers:     brokers,
		Topic:       cfg.Kafka.Topic,
		Group:       cfg.Kafka.Group,
		WorkerCount: cfg.Kafka.Workers,
		Logger:      logger,
		Metrics:     metrics.New(),
	}
	logger.Info("consuming snapshots",
		zap.String("topic", pool.Topic),
		zap.String("group", pool.Group),
		zap.Int("workers", pool.WorkerCount),
		zap.String("driver", cfg.Storage.Driver),
	)
	pool.Run(ctx, workers.MirrorHandler(replica))
	logger.Info("mirror stopped")
}
