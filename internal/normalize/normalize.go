// Package normalize maps adapter records into the unified catalog schema.
// Everything here is pure.
package normalize

import (
	"regexp"
	"strings"

	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/models"
)

const defaultCurrency = "other"

// UnifyID builds the composite catalog id.
func UnifyID(platform, platformMarketID string) string {
	return platform + ":" + platformMarketID
}

// ContractID builds the composite contract id; code wins over name.
func ContractID(marketID, code, name string) string {
	if code != "" {
		return marketID + ":" + code
	}
	return marketID + ":" + name
}

// ImpliedProbFromPrice clamps a raw price into [0,1]. Nil stays nil.
func ImpliedProbFromPrice(price *float64) *float64 {
	if price == nil {
		return nil
	}
	p := *price
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &p
}

// Complement returns 1-p for the opposite side of a binary market, or nil when p is nil.
func Complement(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := 1 - *p
	return &v
}

var (
	bracketRe    = regexp.MustCompile(`[()\[\]]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeTitle strips bracket characters, collapses whitespace runs and trims.
func NormalizeTitle(raw string) string {
	s := bracketRe.ReplaceAllString(raw, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type categoryRule struct {
	category models.Category
	keywords []string
}

// Order matters: the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{models.CategoryPolitics, []string{"politic"}},
	{models.CategoryMacro, []string{"macro", "rate", "inflation"}},
	{models.CategorySports, []string{"sport", "nba", "nfl", "mlb", "nhl", "playoff", "soccer", "football", "tennis", "ufc"}},
	{models.CategoryCrypto, []string{"crypto", "btc", "bitcoin"}},
	{models.CategoryTech, []string{"tech", "ai"}},
}

// MapCategory maps a free-form upstream category onto the closed catalog set.
func MapCategory(raw string) models.Category {
	v := strings.ToLower(raw)
	if v == "" {
		return models.CategoryOther
	}
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(v, kw) {
				return rule.category
			}
		}
	}
	return models.CategoryOther
}

// Market converts an adapter record into a catalog Market.
func Market(r collectors.Record) models.Market {
	status := r.Status
	if !status.Valid() {
		status = models.StatusOpen
	}
	currency := r.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return models.Market{
		ID:               UnifyID(string(r.Platform), r.PlatformMarketID),
		Platform:         string(r.Platform),
		PlatformMarketID: r.PlatformMarketID,
		Title:            NormalizeTitle(r.Title),
		Description:      r.Description,
		Category:         MapCategory(r.Category),
		Tags:             tags,
		Status:           status,
		ResolveTime:      r.ResolveTime,
		CloseTime:        r.CloseTime,
		Currency:         currency,
		Metrics:          r.Metrics,
	}
}

// Contracts converts a record's outcomes into catalog contracts owned by marketID.
// Prices are clamped and implied probability is derived from the last price.
func Contracts(marketID string, in []collectors.ContractRecord) []models.Contract {
	out := make([]models.Contract, 0, len(in))
	for _, c := range in {
		out = append(out, models.Contract{
			ID:           ContractID(marketID, c.Code, c.Name),
			MarketID:     marketID,
			Name:         c.Name,
			LastPrice:    ImpliedProbFromPrice(c.LastPrice),
			BestBid:      ImpliedProbFromPrice(c.BestBid),
			BestAsk:      ImpliedProbFromPrice(c.BestAsk),
			ImpliedProb:  ImpliedProbFromPrice(c.LastPrice),
			OpenInterest: c.OpenInterest,
			FeeRate:      c.FeeRate,
		})
	}
	return out
}

// Record normalizes a full record into its Market and Contracts.
func Record(r collectors.Record) (models.Market, []models.Contract) {
	m := Market(r)
	return m, Contracts(m.ID, r.Contracts)
}

// Valid reports whether a record carries enough to be keyed.
func Valid(r collectors.Record) bool {
	return r.Platform != "" && strings.TrimSpace(r.PlatformMarketID) != ""
}
