package collectors

import (
	"context"
	"time"

	"github.com/yanboishere/MetaOdds/internal/models"
)

// Venue identifies the platform a record belongs to.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// Collector is implemented by venue-specific adapters (Polymarket, Kalshi, ...).
// FetchAll walks every page the venue exposes for one pass and returns the
// flattened records; any error means the pass got nothing usable from the venue.
type Collector interface {
	Name() Venue
	FetchAll(ctx context.Context) ([]Record, error)
}

// JSONGetter is the transport collectors fetch pages through.
type JSONGetter interface {
	GetJSON(ctx context.Context, url string, dst any) error
}

// Record is one market as an adapter understood it, before normalization.
// It is also the on-disk shape of fixture and last-known-good snapshots.
type Record struct {
	Platform         Venue            `json:"platform"`
	PlatformMarketID string           `json:"platform_market_id"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	Category         string           `json:"category,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	Status           models.Status    `json:"status,omitempty"`
	ResolveTime      *time.Time       `json:"resolve_time,omitempty"`
	CloseTime        *time.Time       `json:"close_time,omitempty"`
	Currency         string           `json:"currency,omitempty"`
	Metrics          models.Metrics   `json:"metrics"`
	Contracts        []ContractRecord `json:"contracts"`
}

// ContractRecord is one outcome of a Record. Code, when set, wins over Name in the contract id.
type ContractRecord struct {
	Code         string   `json:"code,omitempty"`
	Name         string   `json:"name"`
	LastPrice    *float64 `json:"last_price,omitempty"`
	BestBid      *float64 `json:"best_bid,omitempty"`
	BestAsk      *float64 `json:"best_ask,omitempty"`
	OpenInterest *float64 `json:"open_interest,omitempty"`
	FeeRate      *float64 `json:"fee_rate,omitempty"`
}

// YesNo is the default contract pair for binary markets without an outcome list.
func YesNo() []ContractRecord {
	return []ContractRecord{{Name: "Yes"}, {Name: "No"}}
}
