package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/models"
	"github.com/yanboishere/MetaOdds/internal/normalize"
)

const (
	DefaultBaseURL  = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultPageSize = 1000

	currencyUSD = "USD"
)

// Config provides optional overrides.
type Config struct {
	BaseURL  string
	PageSize int
	MaxPages int
}

// Client lists open Kalshi markets through the public Trade API.
type Client struct {
	getter collectors.JSONGetter
	cfg    Config
}

// NewClient builds a configured Kalshi API client.
func NewClient(getter collectors.JSONGetter, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = collectors.DefaultMaxPages
	}
	return &Client{getter: getter, cfg: cfg}
}

func (c *Client) Name() collectors.Venue {
	return collectors.VenueKalshi
}

// FetchAll follows the markets cursor until the API stops returning one.
func (c *Client) FetchAll(ctx context.Context) ([]collectors.Record, error) {
	markets, err := collectors.PaginateCursor(ctx, c.cfg.MaxPages, c.listMarkets)
	if err != nil {
		return nil, fmt.Errorf("list kalshi markets: %w", err)
	}
	records := make([]collectors.Record, 0, len(markets))
	for i := range markets {
		if strings.TrimSpace(markets[i].Ticker) == "" {
			continue
		}
		records = append(records, marketRecord(&markets[i]))
	}
	return records, nil
}

func (c *Client) listMarkets(ctx context.Context, cursor string) ([]market, string, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/markets")
	if err != nil {
		return nil, "", err
	}
	q := u.Query()
	q.Set("status", "open")
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	var out marketsResponse
	if err := c.getter.GetJSON(ctx, u.String(), &out); err != nil {
		return nil, "", err
	}
	return out.Markets, out.Cursor, nil
}

// MapStatus folds Kalshi's lifecycle states onto the catalog's three.
func MapStatus(raw string) models.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "active":
		return models.StatusOpen
	case "settled":
		return models.StatusResolved
	default:
		return models.StatusClosed
	}
}

func marketRecord(m *market) collectors.Record {
	bid := dollars(m.YesBidDollars, m.YesBid)
	ask := dollars(m.YesAskDollars, m.YesAsk)
	implied := dollars(m.LastPriceDollars, m.LastPrice)
	if implied == nil && bid != nil && ask != nil {
		mid := (*bid + *ask) / 2
		implied = &mid
	}

	volume := m.Volume24h.Ptr()
	if volume == nil {
		volume = m.Volume.Ptr()
	}

	return collectors.Record{
		Platform:         collectors.VenueKalshi,
		PlatformMarketID: m.Ticker,
		Title:            marketTitle(m),
		Description:      m.Subtitle,
		Category:         collectors.FirstNonEmpty(m.Category, string(models.CategoryOther)),
		Status:           MapStatus(m.Status),
		ResolveTime:      collectors.ParseTime(m.ExpirationTime, m.LatestExpirationTime),
		CloseTime:        collectors.ParseTime(m.CloseTime),
		Currency:         currencyUSD,
		Metrics: models.Metrics{
			Volume24h:    volume,
			OpenInterest: m.OpenInterest.Ptr(),
		},
		Contracts: []collectors.ContractRecord{
			{Name: "Yes", LastPrice: implied, BestBid: bid, BestAsk: ask},
			{Name: "No", LastPrice: normalize.Complement(implied)},
		},
	}
}

// dollars prefers the dollar-denominated field and falls back to cents/100.
func dollars(d, cents collectors.FlexFloat) *float64 {
	if d.Set {
		return d.Ptr()
	}
	if cents.Set {
		v := cents.Value / 100
		return &v
	}
	return nil
}

// marketTitle fills the blank Kalshi leaves in templated titles ("Will  win the
// 2026 title?") with the entity named in the rules or the ticker suffix.
func marketTitle(m *market) string {
	base := collectors.FirstNonEmpty(m.Title, m.Subtitle)
	if !strings.Contains(base, "  ") {
		return base
	}
	alias := extractEntityFromRules(m.RulesPrimary)
	if alias == "" {
		if parts := strings.Split(m.Ticker, "-"); len(parts) > 1 {
			alias = parts[len(parts)-1]
		}
	}
	if alias == "" || strings.Contains(strings.ToLower(base), strings.ToLower(alias)) {
		return base
	}
	return strings.Replace(base, "  ", " "+alias+" ", 1)
}

var ruleVerbs = []string{" becomes", " is ", " wins", " will ", " reaches", " secures", " scores", " resigns", " retires", " defeats", " beats", " finishes", " captures", " takes", " makes", " receives", " gets "}

// extractEntityFromRules pulls the subject out of "If X wins ..., then ..." rules.
func extractEntityFromRules(rule string) string {
	rule = strings.TrimSpace(rule)
	if len(rule) < 3 || !strings.EqualFold(rule[:3], "if ") {
		return ""
	}
	trimmed := strings.TrimSpace(rule[3:])
	lower := strings.ToLower(trimmed)
	pos := -1
	for _, kw := range ruleVerbs {
		if idx := strings.Index(lower, kw); idx != -1 && (pos == -1 || idx < pos) {
			pos = idx
		}
	}
	if pos == -1 {
		switch {
		case strings.Contains(lower, ","):
			pos = strings.Index(lower, ",")
		case strings.Contains(lower, " then"):
			pos = strings.Index(lower, " then")
		default:
			pos = len(trimmed)
		}
	}
	return strings.Trim(strings.TrimSpace(trimmed[:pos]), `"'`)
}
