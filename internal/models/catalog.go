package models

import "time"

// Category is the closed set of catalog categories.
type Category string

const (
	CategoryPolitics Category = "politics"
	CategoryMacro    Category = "macro"
	CategorySports   Category = "sports"
	CategoryCrypto   Category = "crypto"
	CategoryTech     Category = "tech"
	CategoryOther    Category = "other"
)

// Status is the lifecycle state of a market.
type Status string

const (
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
	StatusResolved Status = "resolved"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusResolved:
		return true
	}
	return false
}

// Metrics holds optional market-level numbers. Nil means the platform did not report it.
type Metrics struct {
	Volume24h    *float64 `json:"volume_24h,omitempty"`
	Volume7d     *float64 `json:"volume_7d,omitempty"`
	OpenInterest *float64 `json:"open_interest,omitempty"`
	FeeRate      *float64 `json:"fee_rate,omitempty"`
}

// Market is the unified catalog record. ID is "platform:platform_market_id".
type Market struct {
	ID               string     `json:"id"`
	Platform         string     `json:"platform"`
	PlatformMarketID string     `json:"platform_market_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         Category   `json:"category"`
	Tags             []string   `json:"tags"`
	Status           Status     `json:"status"`
	ResolveTime      *time.Time `json:"resolve_time,omitempty"`
	CloseTime        *time.Time `json:"close_time,omitempty"`
	Currency         string     `json:"currency"`
	Metrics          Metrics    `json:"metrics"`

	// Set by the store on reads.
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at,omitempty"`
}

// Contract is a tradable outcome of a Market. ID is "marketID:code-or-name".
type Contract struct {
	ID           string   `json:"id"`
	MarketID     string   `json:"market_id"`
	Name         string   `json:"name"`
	LastPrice    *float64 `json:"last_price,omitempty"`
	BestBid      *float64 `json:"best_bid,omitempty"`
	BestAsk      *float64 `json:"best_ask,omitempty"`
	ImpliedProb  *float64 `json:"implied_prob,omitempty"`
	OpenInterest *float64 `json:"open_interest,omitempty"`
	FeeRate      *float64 `json:"fee_rate,omitempty"`

	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at,omitempty"`
}

// MarketHistoryPoint is a price/volume sample written by an external collaborator.
type MarketHistoryPoint struct {
	MarketID     string    `json:"market_id"`
	ContractName string    `json:"contract_name,omitempty"`
	TS           time.Time `json:"ts"`
	Price        *float64  `json:"price,omitempty"`
	Volume       *float64  `json:"volume,omitempty"`
}
