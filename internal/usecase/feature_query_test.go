package usecase

import (
	"context"
	"testing"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	"EquityPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueryFixture(t *testing.T) (*FeatureQuery, *memStore, *cache.MemoryCache) {
	t.Helper()
	st := newMemStore()
	st.returns[1] = models.ReturnRecord{SecurityID: 1, AsOfDate: refDate, Returns: models.Returns{Return24h: fp(0.01)}}
	st.returns[2] = models.ReturnRecord{SecurityID: 2, AsOfDate: refDate.AddDate(0, 0, -1), Returns: models.Returns{Return24h: fp(-0.02)}}
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return NewFeatureQuery(st, mc, time.Minute, nil), st, mc
}

func TestFeatureQueryReturnIsCached(t *testing.T) {
	q, st, _ := newQueryFixture(t)
	ctx := context.Background()

	first, err := q.Return(ctx, 1, refDate)
	require.NoError(t, err)
	second, err := q.Return(ctx, 1, refDate)
	require.NoError(t, err)

	assert.Equal(t, 1, st.readCount("return"))
	require.NotNil(t, second.Return24h)
	assert.Equal(t, *first.Return24h, *second.Return24h)
	assert.True(t, second.AsOfDate.Equal(refDate))
}

func TestFeatureQueryNotFoundIsNotCached(t *testing.T) {
	q, st, _ := newQueryFixture(t)
	ctx := context.Background()

	_, err := q.Return(ctx, 9, refDate)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
	_, err = q.Return(ctx, 9, refDate)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
	assert.Equal(t, 2, st.readCount("return"))
}

func TestFeatureQueryZeroDateUsesLatestRow(t *testing.T) {
	q, _, _ := newQueryFixture(t)

	rec, err := q.Return(context.Background(), 2, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.SecurityID)
	assert.InDelta(t, -0.02, *rec.Return24h, 1e-12)

	_, err = q.Return(context.Background(), 7, time.Time{})
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestFeatureQueryInvalidationReloads(t *testing.T) {
	q, st, mc := newQueryFixture(t)
	ctx := context.Background()
	st.triage = []models.TriageRow{{SecurityID: 1, Ticker: "AAA"}, {SecurityID: 2, Ticker: "BBB"}}
	f := models.TriageFilter{SortBy: models.TriageSortScore, Limit: 200}

	rows, err := q.Triage(ctx, f)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	_, err = q.Triage(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1, st.readCount("triage"))

	_, err = q.Triage(ctx, models.TriageFilter{SortBy: models.TriageSortScore, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, st.readCount("triage"))

	require.NoError(t, mc.DeleteByPattern(ctx, queryKeyPrefix+"*"))
	_, err = q.Triage(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 3, st.readCount("triage"))
}

func TestFeatureQueryPortfolioLatest(t *testing.T) {
	q, st, _ := newQueryFixture(t)
	ctx := context.Background()

	_, err := q.Portfolio(ctx, time.Time{})
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	st.portfolio = &models.PortfolioRecord{AsOfDate: refDate, Returns: models.Returns{ReturnYTD: fp(0.12)}}
	p, err := q.Portfolio(ctx, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 0.12, *p.ReturnYTD, 1e-12)

	p, err = q.Portfolio(ctx, refDate)
	require.NoError(t, err)
	assert.True(t, p.AsOfDate.Equal(refDate))
	assert.Equal(t, 1, st.readCount("portfolio"))
}

func TestFeatureQueryWithoutCache(t *testing.T) {
	st := newMemStore()
	st.benchRets[10] = models.BenchmarkReturnRecord{BenchmarkID: 10, AsOfDate: refDate, Returns: models.Returns{Return7d: fp(0.03)}}
	q := NewFeatureQuery(st, nil, time.Minute, nil)

	for i := 0; i < 2; i++ {
		rec, err := q.BenchmarkReturn(context.Background(), 10, refDate)
		require.NoError(t, err)
		assert.InDelta(t, 0.03, *rec.Return7d, 1e-12)
	}
	assert.Equal(t, 2, st.readCount("benchmark"))
}
