package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/yanboishere/MetaOdds/internal/config"
	"github.com/yanboishere/MetaOdds/internal/models"
	"github.com/yanboishere/MetaOdds/internal/storage"
	"github.com/yanboishere/MetaOdds/internal/storage/backend"
)

type marketView struct {
	Market    models.Market               `json:"market"`
	Contracts []models.Contract           `json:"contracts"`
	History   []models.MarketHistoryPoint `json:"history,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	id := flag.String("id", "", "market id, e.g. polymarket:fed-cut")
	history := flag.Int("history", 0, "also print up to N history points")
	flag.Parse()

	if *id == "" {
		fmt.Fprintln(os.Stderr, "usage: catalog_inspect -id platform:market_id [-history N]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg.Storage.Backend())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	m, err := store.FindMarket(ctx, *id)
	if errors.Is(err, storage.ErrNotFound) {
		log.Fatalf("market %s not found", *id)
	}
	if err != nil {
		log.Fatalf("find market: %v", err)
	}
	view := marketView{Market: m}
	if view.Contracts, err = store.ListContracts(ctx, *id); err != nil {
		log.Fatalf("list contracts: %v", err)
	}
	if *history > 0 {
		if view.History, err = store.ListHistory(ctx, *id, *history); err != nil {
			log.Fatalf("list history: %v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
