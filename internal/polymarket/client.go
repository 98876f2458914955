package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/models"
)

const (
	DefaultBaseURL  = "https://gamma-api.polymarket.com"
	DefaultPageSize = 100

	currencyUSDC = "USDC"
)

// Config controls optional overrides for the client.
type Config struct {
	BaseURL   string
	PageSize  int
	MaxOffset int
	MaxPages  int
}

// Client walks the Gamma /events listing and flattens it into records.
type Client struct {
	getter collectors.JSONGetter
	cfg    Config
}

// NewClient builds a Polymarket client with sane defaults.
func NewClient(getter collectors.JSONGetter, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = collectors.DefaultMaxOffset
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = collectors.DefaultMaxPages
	}
	return &Client{getter: getter, cfg: cfg}
}

func (c *Client) Name() collectors.Venue {
	return collectors.VenuePolymarket
}

// FetchAll pages through open events, newest id first.
func (c *Client) FetchAll(ctx context.Context) ([]collectors.Record, error) {
	paging := collectors.OffsetPaging{
		Limit:     c.cfg.PageSize,
		MaxOffset: c.cfg.MaxOffset,
		MaxPages:  c.cfg.MaxPages,
	}
	events, err := collectors.PaginateOffset(ctx, paging, c.listEvents)
	if err != nil {
		return nil, fmt.Errorf("polymarket list events: %w", err)
	}

	var records []collectors.Record
	for i := range events {
		records = append(records, eventRecords(&events[i])...)
	}
	return records, nil
}

func (c *Client) listEvents(ctx context.Context, offset, limit int) ([]event, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/events")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("order", "id")
	q.Set("ascending", "false")
	q.Set("closed", "false")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	var page eventsPage
	if err := c.getter.GetJSON(ctx, u.String(), &page); err != nil {
		return nil, err
	}
	return page, nil
}

func eventRecords(ev *event) []collectors.Record {
	slug := collectors.FirstNonEmpty(ev.Slug, ev.EventSlug, string(ev.ID))
	title := collectors.FirstNonEmpty(ev.Title, ev.Question)
	category := collectors.FirstNonEmpty(ev.Category, string(models.CategoryOther))
	resolve := collectors.ParseTime(ev.EndDateISO, ev.EventEndDate, ev.EndDate)
	tags := []string(ev.Tags)

	if len(ev.Markets) == 0 {
		return []collectors.Record{{
			Platform:         collectors.VenuePolymarket,
			PlatformMarketID: slug,
			Title:            title,
			Description:      ev.Description,
			Category:         category,
			Tags:             tags,
			Status:           models.StatusOpen,
			ResolveTime:      resolve,
			Currency:         currencyUSDC,
			Contracts:        collectors.YesNo(),
		}}
	}

	out := make([]collectors.Record, 0, len(ev.Markets))
	for i := range ev.Markets {
		m := &ev.Markets[i]
		status := models.StatusOpen
		if m.Closed {
			status = models.StatusClosed
		}
		marketResolve := collectors.ParseTime(m.EndDateISO, m.EndDate)
		if marketResolve == nil {
			marketResolve = resolve
		}
		out = append(out, collectors.Record{
			Platform:         collectors.VenuePolymarket,
			PlatformMarketID: collectors.FirstNonEmpty(m.MarketSlug, m.Slug, m.ConditionID, m.ConditionIDCamel, string(m.ID), slug),
			Title:            collectors.FirstNonEmpty(m.Title, m.Question, title),
			Description:      collectors.FirstNonEmpty(ev.Description, m.Description),
			Category:         collectors.FirstNonEmpty(m.Category, category),
			Tags:             tags,
			Status:           status,
			ResolveTime:      marketResolve,
			CloseTime:        collectors.ParseTime(m.GameStartTime, m.GameStartTimeCamel),
			Currency:         currencyUSDC,
			Metrics: models.Metrics{
				Volume24h: m.Volume24hr.Ptr(),
				Volume7d:  m.Volume1wk.Ptr(),
			},
			Contracts: marketContracts(m),
		})
	}
	return out
}

// marketContracts prefers CLOB tokens, then Gamma's outcome arrays, then a bare Yes/No pair.
func marketContracts(m *market) []collectors.ContractRecord {
	var out []collectors.ContractRecord
	for _, tok := range m.Tokens {
		name := strings.TrimSpace(tok.Outcome)
		if name == "" {
			continue
		}
		out = append(out, collectors.ContractRecord{Name: name, LastPrice: tok.Price.Ptr()})
	}
	if len(out) > 0 {
		return out
	}

	for i, outcome := range m.Outcomes {
		name := strings.TrimSpace(outcome)
		if name == "" {
			continue
		}
		c := collectors.ContractRecord{Name: name}
		if i < len(m.OutcomePrices) {
			c.LastPrice = m.OutcomePrices[i].Ptr()
		}
		out = append(out, c)
	}
	if len(out) > 0 {
		return out
	}
	return collectors.YesNo()
}
