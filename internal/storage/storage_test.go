package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yanboishere/MetaOdds/internal/models"
)

func TestContentHashIgnoresTimestampsAndOrder(t *testing.T) {
	p := 0.62
	m := models.Market{ID: "kalshi:A", Platform: "kalshi", PlatformMarketID: "A", Title: "A", Status: models.StatusOpen}
	yes := models.Contract{ID: "kalshi:A:Yes", Name: "Yes", LastPrice: &p}
	no := models.Contract{ID: "kalshi:A:No", Name: "No"}

	h := ContentHash(m, []models.Contract{yes, no})
	assert.Equal(t, h, ContentHash(m, []models.Contract{no, yes}))

	m.LastSeenAt = time.Now()
	yes.UpdatedAt = time.Now()
	assert.Equal(t, h, ContentHash(m, []models.Contract{yes, no}))

	m.Title = "A2"
	assert.NotEqual(t, h, ContentHash(m, []models.Contract{yes, no}))
}

func TestContentHashDistinguishesNilFromZero(t *testing.T) {
	zero := 0.0
	m := models.Market{ID: "x"}
	assert.NotEqual(t,
		ContentHash(m, []models.Contract{{ID: "x:Yes"}}),
		ContentHash(m, []models.Contract{{ID: "x:Yes", LastPrice: &zero}}),
	)
}

func TestUpsertResultString(t *testing.T) {
	assert.Equal(t, "inserted", Inserted.String())
	assert.Equal(t, "updated", Updated.String())
	assert.Equal(t, "unchanged", Unchanged.String())
	assert.Equal(t, "unknown", UpsertResult(0).String())
}
