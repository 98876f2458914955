package kalshi

import "github.com/yanboishere/MetaOdds/internal/collectors"

type marketsResponse struct {
	Markets []market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// market is one row of GET /markets. Dollar fields are decimal strings on the
// current API; the integer cent fields are what older responses carry.
type market struct {
	Ticker               string               `json:"ticker"`
	EventTicker          string               `json:"event_ticker"`
	Title                string               `json:"title"`
	Subtitle             string               `json:"subtitle"`
	Category             string               `json:"category"`
	Status               string               `json:"status"`
	RulesPrimary         string               `json:"rules_primary"`
	ExpirationTime       string               `json:"expiration_time"`
	LatestExpirationTime string               `json:"latest_expiration_time"`
	CloseTime            string               `json:"close_time"`
	YesBidDollars        collectors.FlexFloat `json:"yes_bid_dollars"`
	YesAskDollars        collectors.FlexFloat `json:"yes_ask_dollars"`
	LastPriceDollars     collectors.FlexFloat `json:"last_price_dollars"`
	YesBid               collectors.FlexFloat `json:"yes_bid"`
	YesAsk               collectors.FlexFloat `json:"yes_ask"`
	LastPrice            collectors.FlexFloat `json:"last_price"`
	Volume               collectors.FlexFloat `json:"volume"`
	Volume24h            collectors.FlexFloat `json:"volume_24h"`
	OpenInterest         collectors.FlexFloat `json:"open_interest"`
}
