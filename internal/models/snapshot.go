package models

import "time"

// Origin tells consumers whether a snapshot came from a live fetch or a fixture.
type Origin string

const (
	OriginLive    Origin = "live"
	OriginFixture Origin = "fixture"
)

// MarketSnapshot is the payload placed on the catalog Kafka topic.
type MarketSnapshot struct {
	RunID      string     `json:"run_id"`
	Origin     Origin     `json:"origin"`
	Market     Market     `json:"market"`
	Contracts  []Contract `json:"contracts"`
	CapturedAt time.Time  `json:"captured_at"`
}

// NewSnapshot copies the contract slice so later mutation by the caller does not leak into the payload.
func NewSnapshot(runID string, origin Origin, m Market, contracts []Contract, capturedAt time.Time) MarketSnapshot {
	cs := make([]Contract, len(contracts))
	copy(cs, contracts)
	return MarketSnapshot{
		RunID:      runID,
		Origin:     origin,
		Market:     m,
		Contracts:  cs,
		CapturedAt: capturedAt.UTC(),
	}
}
