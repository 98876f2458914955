package main

import (
	"context"
	"flag"
	"log"

	"github.com/yanboishere/MetaOdds/internal/config"
	"github.com/yanboishere/MetaOdds/internal/storage/backend"
	"github.com/yanboishere/MetaOdds/internal/storage/postgres"
	"github.com/yanboishere/MetaOdds/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	action := flag.String("action", "create", "create|clear|drop (clear and drop are sqlite only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	if cfg.Storage.Driver == backend.DriverPostgres {
		if *action != "create" {
			log.Fatalf("action %q is not supported for postgres", *action)
		}
		pool, err := postgres.Connect(ctx, cfg.Storage.Postgres.Client())
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Printf("postgres migrations applied")
		return
	}

	store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	switch *action {
	case "create":
		err = store.CreateTables(ctx)
	case "clear":
		err = store.ClearTables(ctx)
	case "drop":
		err = store.DropTables(ctx)
	default:
		log.Fatalf("unknown action %q", *action)
	}
	if err != nil {
		log.Fatalf("%s tables: %v", *action, err)
	}
	log.Printf("SQLite tables %s done at %s", *action, store.Path())
}
