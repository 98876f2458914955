package fixtures

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/models"
)

type memStore struct {
	name    string
	records map[collectors.Venue][]collectors.Record
	err     error
	saves   int
}

func (m *memStore) Name() string { return m.name }

func (m *memStore) Load(_ context.Context, venue collectors.Venue) ([]collectors.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.records[venue]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return r, nil
}

func (m *memStore) Save(_ context.Context, venue collectors.Venue, records []collectors.Record) error {
	m.saves++
	if m.err != nil {
		return m.err
	}
	if m.records == nil {
		m.records = map[collectors.Venue][]collectors.Record{}
	}
	m.records[venue] = records
	return nil
}

func TestBundledFixturesDecode(t *testing.T) {
	ctx := context.Background()
	for _, venue := range []collectors.Venue{collectors.VenuePolymarket, collectors.VenueKalshi} {
		records, err := Bundled().Load(ctx, venue)
		require.NoError(t, err, venue)
		require.NotEmpty(t, records, venue)
		for _, r := range records {
			assert.Equal(t, venue, r.Platform)
			assert.NotEmpty(t, r.PlatformMarketID)
			assert.True(t, r.Status.Valid())
			assert.Len(t, r.Contracts, 2)
		}
	}

	_, err := Bundled().Load(ctx, "manifold")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kalshi.json"),
		[]byte(`[{"platform_market_id": "X", "title": "X?", "status": "open", "contracts": []}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "polymarket.json"), []byte(`{not json`), 0o644))

	records, err := Dir(dir).Load(context.Background(), collectors.VenueKalshi)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, collectors.VenueKalshi, records[0].Platform)
	assert.Equal(t, models.StatusOpen, records[0].Status)

	_, err = Dir(dir).Load(context.Background(), collectors.VenuePolymarket)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}

func TestChainPrefersFirstNonEmpty(t *testing.T) {
	ctx := context.Background()
	lkg := &memStore{name: "redis", records: map[collectors.Venue][]collectors.Record{
		collectors.VenueKalshi: {{Platform: collectors.VenueKalshi, PlatformMarketID: "LIVE"}},
		// an empty snapshot falls through
		collectors.VenuePolymarket: {},
	}}
	broken := &memStore{name: "s3", err: errors.New("access denied")}
	chain := NewChain(nil, broken, lkg, Bundled())

	records, err := chain.Load(ctx, collectors.VenueKalshi)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "LIVE", records[0].PlatformMarketID)

	records, err = chain.Load(ctx, collectors.VenuePolymarket)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = NewChain(nil, lkg).Load(ctx, "manifold")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSaversJoinErrors(t *testing.T) {
	ok := &memStore{name: "ok"}
	bad := &memStore{name: "bad", err: errors.New("disk full")}
	records := []collectors.Record{{Platform: collectors.VenueKalshi, PlatformMarketID: "A"}}

	err := Savers{bad, ok}.Save(context.Background(), collectors.VenueKalshi, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, ok.saves)
	assert.Equal(t, records, ok.records[collectors.VenueKalshi])

	assert.NoError(t, Savers{}.Save(context.Background(), collectors.VenueKalshi, records))
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = Decode(collectors.VenueKalshi, []byte(`{}`))
	assert.Error(t, err)
}
