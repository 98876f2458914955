package kalshi

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/models"
)

type cursorGetter struct {
	pages map[string]string // cursor -> body
	urls  []string
	err   error
}

func (g *cursorGetter) GetJSON(_ context.Context, rawURL string, dst any) error {
	g.urls = append(g.urls, rawURL)
	if g.err != nil {
		return g.err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	body, ok := g.pages[u.Query().Get("cursor")]
	if !ok {
		body = `{"markets": [], "cursor": ""}`
	}
	return json.Unmarshal([]byte(body), dst)
}

func TestFetchAllFollowsCursor(t *testing.T) {
	g := &cursorGetter{pages: map[string]string{
		"":   `{"markets": [{"ticker": "A", "title": "Market A", "status": "active"}], "cursor": "c2"}`,
		"c2": `{"markets": [{"ticker": "B", "title": "Market B", "status": "settled"}], "cursor": ""}`,
	}}
	c := NewClient(g, Config{BaseURL: "https://kalshi.test/trade-api/v2/"})

	records, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, g.urls, 2)

	u, err := url.Parse(g.urls[0])
	require.NoError(t, err)
	assert.Equal(t, "/trade-api/v2/markets", u.Path)
	assert.Equal(t, "open", u.Query().Get("status"))
	assert.Equal(t, "1000", u.Query().Get("limit"))
	assert.False(t, u.Query().Has("cursor"))

	u, err = url.Parse(g.urls[1])
	require.NoError(t, err)
	assert.Equal(t, "c2", u.Query().Get("cursor"))

	assert.Equal(t, models.StatusOpen, records[0].Status)
	assert.Equal(t, models.StatusResolved, records[1].Status)
}

func TestMarketRecordFromDollarFields(t *testing.T) {
	g := &cursorGetter{pages: map[string]string{
		"": `{"markets": [{
			"ticker": "FED-26DEC-T4.00",
			"title": "Fed funds above 4%?",
			"subtitle": "December meeting",
			"category": "Economics",
			"status": "open",
			"yes_bid_dollars": "0.4100",
			"yes_ask_dollars": "0.4500",
			"last_price_dollars": "0.4300",
			"volume": 900,
			"open_interest": 1200,
			"expiration_time": "2026-12-17T19:00:00Z",
			"close_time": "2026-12-17T18:00:00Z"
		}]}`,
	}}
	records, err := NewClient(g, Config{}).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, collectors.VenueKalshi, r.Platform)
	assert.Equal(t, "FED-26DEC-T4.00", r.PlatformMarketID)
	assert.Equal(t, "December meeting", r.Description)
	assert.Equal(t, "Economics", r.Category)
	assert.Equal(t, "USD", r.Currency)
	require.NotNil(t, r.ResolveTime)
	require.NotNil(t, r.CloseTime)
	assert.Equal(t, 19, r.ResolveTime.Hour())
	assert.Equal(t, 18, r.CloseTime.Hour())
	require.NotNil(t, r.Metrics.Volume24h)
	assert.Equal(t, 900.0, *r.Metrics.Volume24h)
	assert.Equal(t, 1200.0, *r.Metrics.OpenInterest)

	require.Len(t, r.Contracts, 2)
	yes, no := r.Contracts[0], r.Contracts[1]
	assert.Equal(t, "Yes", yes.Name)
	assert.InDelta(t, 0.43, *yes.LastPrice, 1e-9)
	assert.InDelta(t, 0.41, *yes.BestBid, 1e-9)
	assert.InDelta(t, 0.45, *yes.BestAsk, 1e-9)
	assert.Equal(t, "No", no.Name)
	assert.InDelta(t, 0.57, *no.LastPrice, 1e-9)
	assert.Nil(t, no.BestBid)
}

func TestMarketRecordCentFallbackAndMidpoint(t *testing.T) {
	m := &market{Ticker: "X", Title: "X?", Status: "closed"}
	require.NoError(t, json.Unmarshal([]byte(`{"yes_bid": 30, "yes_ask": 40}`), m))

	r := marketRecord(m)
	assert.Equal(t, models.StatusClosed, r.Status)
	assert.Equal(t, "other", r.Category)
	assert.InDelta(t, 0.30, *r.Contracts[0].BestBid, 1e-9)
	assert.InDelta(t, 0.40, *r.Contracts[0].BestAsk, 1e-9)
	assert.InDelta(t, 0.35, *r.Contracts[0].LastPrice, 1e-9)
	assert.InDelta(t, 0.65, *r.Contracts[1].LastPrice, 1e-9)
}

func TestMarketRecordWithoutPrices(t *testing.T) {
	r := marketRecord(&market{Ticker: "X", Subtitle: "Only subtitle", YesBidDollars: collectors.FlexFloat{Value: 0.2, Set: true}})
	assert.Equal(t, "Only subtitle", r.Title)
	assert.Nil(t, r.Contracts[0].LastPrice)
	assert.Nil(t, r.Contracts[1].LastPrice)
	assert.InDelta(t, 0.2, *r.Contracts[0].BestBid, 1e-9)
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, models.StatusOpen, MapStatus("open"))
	assert.Equal(t, models.StatusOpen, MapStatus("Active"))
	assert.Equal(t, models.StatusResolved, MapStatus("settled"))
	assert.Equal(t, models.StatusClosed, MapStatus("finalized"))
	assert.Equal(t, models.StatusClosed, MapStatus(""))
}

func TestMarketTitleRepairsPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		m    market
		want string
	}{
		{"from rules", market{Ticker: "PRES-26-JD", Title: "Will  become president?", RulesPrimary: "If Jane Doe becomes president, then the market resolves Yes."}, "Will Jane Doe become president?"},
		{"from ticker", market{Ticker: "CHAMP-26-LAL", Title: "Will  win the title?"}, "Will LAL win the title?"},
		{"no placeholder", market{Ticker: "A-B", Title: "Plain title"}, "Plain title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marketTitle(&tt.m))
		})
	}
}

func TestFetchAllSkipsBlankTickers(t *testing.T) {
	g := &cursorGetter{pages: map[string]string{
		"": `{"markets": [{"ticker": ""}, {"ticker": "OK", "title": "ok"}]}`,
	}}
	records, err := NewClient(g, Config{}).FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "OK", records[0].PlatformMarketID)
}

func TestFetchAllPropagatesGetterError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewClient(&cursorGetter{err: boom}, Config{}).FetchAll(context.Background())
	assert.ErrorIs(t, err, boom)
}
