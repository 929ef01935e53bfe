package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"EquityPulse/internal/domain/models"
	"EquityPulse/internal/services/features"
	"EquityPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	store   *memStore
	pub     *recordingPublisher
	cache   *cache.MemoryCache
	metrics *countingMetrics
	engine  *FeatureEngine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	st := newMemStore()
	st.securities = []models.Security{{ID: 1, Ticker: "AAA"}, {ID: 2, Ticker: "BBB"}, {ID: 3, Ticker: "CCC"}}
	st.benchmarks = []models.Benchmark{{ID: 10, Ticker: "SPY"}, {ID: 11, Ticker: "QQQ"}, {ID: 12, Ticker: "TB3M"}}
	st.secSeries[1] = closes(refDate, 100, 110)
	st.secSeries[2] = closes(refDate, 100, 95)
	st.secSeries[3] = closes(refDate, 50, 51)
	st.benchSer[10] = closes(refDate, 100, 102)
	st.benchSer[11] = closes(refDate, 100, 103)
	st.benchSer[12] = closes(refDate, 100, 100)
	st.weights = []models.PositionWeight{
		{SecurityID: 1, AsOfDate: refDate, Weight: 0.6},
		{SecurityID: 2, AsOfDate: refDate, Weight: 0.4},
	}

	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	fx := &engineFixture{store: st, pub: &recordingPublisher{}, cache: mc, metrics: newCountingMetrics()}
	fx.engine = NewFeatureEngine(st, features.NewCalculator(), fx.pub, mc, fx.metrics, nil, EngineConfig{
		Workers: 2,
		Roles: map[models.BenchmarkRole]string{
			models.RoleMarket:   "SPY",
			models.RoleGrowth:   "QQQ",
			models.RoleRiskFree: "TB3M",
		},
	})
	return fx
}

func TestFeatureEngineRun(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.cache.Set(ctx, queryKeyPrefix+"triage:score", "stale", time.Minute))

	report, err := fx.engine.Run(ctx, refDate)
	require.NoError(t, err)

	assert.Equal(t, refDate, report.AsOfDate)
	assert.Equal(t, 3, report.Securities)
	assert.Equal(t, 3, report.SecuritiesWritten)
	assert.Equal(t, 3, report.BenchmarksWritten)
	assert.True(t, report.PortfolioWritten)
	assert.Empty(t, report.Failures)

	rec := fx.store.returns[1]
	require.NotNil(t, rec.Return24h)
	assert.InDelta(t, 0.10, *rec.Return24h, 1e-9)

	p := fx.store.portfolio
	require.NotNil(t, p)
	require.NotNil(t, p.Return24h)
	assert.InDelta(t, 0.04, *p.Return24h, 1e-9)
	require.NotNil(t, p.Alpha.Market.Return24h)
	assert.InDelta(t, 0.02, *p.Alpha.Market.Return24h, 1e-9)
	require.NotNil(t, p.Alpha.Growth.Return24h)
	assert.InDelta(t, 0.01, *p.Alpha.Growth.Return24h, 1e-9)
	require.NotNil(t, p.Alpha.RiskFree.Return24h)
	assert.InDelta(t, 0.04, *p.Alpha.RiskFree.Return24h, 1e-9)
	assert.Nil(t, p.Return7d)

	require.Len(t, fx.pub.events, 1)
	assert.Equal(t, "2024-03-15", fx.pub.events[0].AsOfDate)
	assert.Equal(t, 3, fx.pub.events[0].SecuritiesWritten)

	var stale string
	assert.ErrorIs(t, fx.cache.Get(ctx, queryKeyPrefix+"triage:score", &stale), cache.ErrCacheMiss)

	assert.Equal(t, 3, fx.metrics.computed["security"])
	assert.Equal(t, 1, fx.metrics.computed["portfolio"])
	assert.Equal(t, 1, fx.metrics.runs)
	assert.Equal(t, "2024-03-15", fx.metrics.lastRun)

	locked, err := fx.cache.Exists(ctx, lockKeyPrefix+"2024-03-15")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestFeatureEngineIsolatesEntityFailures(t *testing.T) {
	fx := newEngineFixture(t)
	fx.store.seriesErr[3] = errors.New("connection reset")
	fx.store.writeErr[2] = errors.New("constraint violation")

	report, err := fx.engine.Run(context.Background(), refDate)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SecuritiesWritten)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, models.EntityFailure{Kind: "security", ID: 2, Stage: "write", Error: "constraint violation"}, report.Failures[0])
	assert.Equal(t, models.EntityFailure{Kind: "security", ID: 3, Stage: "load", Error: "connection reset"}, report.Failures[1])
	assert.Equal(t, 1, fx.metrics.errors["security_load"])
	assert.Equal(t, 1, fx.metrics.errors["security_write"])
	assert.Equal(t, 2, fx.metrics.failures)

	// Only security 1 has a row; its weight alone drives the roll-up.
	require.NotNil(t, fx.store.portfolio)
	assert.InDelta(t, 0.06, *fx.store.portfolio.Return24h, 1e-9)
	assert.Equal(t, 2, fx.pub.events[0].Failures)
}

func TestFeatureEngineIsolatesBenchmarkFailures(t *testing.T) {
	fx := newEngineFixture(t)
	fx.store.benchSeriesErr[11] = errors.New("timeout")
	fx.store.benchWriteErr[12] = errors.New("disk full")

	report, err := fx.engine.Run(context.Background(), refDate)
	require.NoError(t, err)

	assert.Equal(t, 3, report.SecuritiesWritten)
	assert.Equal(t, 1, report.BenchmarksWritten)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, models.EntityFailure{Kind: "benchmark", ID: 11, Stage: "load", Error: "timeout"}, report.Failures[0])
	assert.Equal(t, models.EntityFailure{Kind: "benchmark", ID: 12, Stage: "write", Error: "disk full"}, report.Failures[1])
	assert.Equal(t, 1, fx.metrics.errors["benchmark_load"])
	assert.Equal(t, 1, fx.metrics.errors["benchmark_write"])

	// Roles without a benchmark row for the date get no alpha.
	p := fx.store.portfolio
	require.NotNil(t, p)
	assert.True(t, report.PortfolioWritten)
	assert.Zero(t, p.Alpha.Growth.Defined())
	assert.Zero(t, p.Alpha.RiskFree.Defined())
	require.NotNil(t, p.Alpha.Market.Return24h)
	assert.InDelta(t, 0.02, *p.Alpha.Market.Return24h, 1e-9)
	require.NotNil(t, p.Return24h)
	assert.InDelta(t, 0.04, *p.Return24h, 1e-9)
}

func TestFeatureEngineRunIsIdempotent(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	_, err := fx.engine.Run(ctx, refDate)
	require.NoError(t, err)
	returns := make(map[int64]models.ReturnRecord, len(fx.store.returns))
	for id, r := range fx.store.returns {
		returns[id] = r
	}
	benchRets := make(map[int64]models.BenchmarkReturnRecord, len(fx.store.benchRets))
	for id, r := range fx.store.benchRets {
		benchRets[id] = r
	}
	require.NotNil(t, fx.store.portfolio)
	portfolio := *fx.store.portfolio

	_, err = fx.engine.Run(ctx, refDate)
	require.NoError(t, err)

	assert.Equal(t, returns, fx.store.returns)
	assert.Equal(t, benchRets, fx.store.benchRets)
	require.NotNil(t, fx.store.portfolio)
	assert.Equal(t, portfolio, *fx.store.portfolio)

	// Second run rewrote every row in place.
	assert.Equal(t, 6, fx.store.upsertCount("security"))
	assert.Equal(t, 6, fx.store.upsertCount("benchmark"))
	assert.Equal(t, 2, fx.store.upsertCount("portfolio"))
	assert.Len(t, fx.store.returns, 3)
	assert.Len(t, fx.store.benchRets, 3)
	assert.Len(t, fx.pub.events, 2)
}

func TestFeatureEngineResolvesToLatestTradeDate(t *testing.T) {
	fx := newEngineFixture(t)
	saturday := refDate.AddDate(0, 0, 1)

	report, err := fx.engine.Run(context.Background(), saturday.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, saturday, report.RequestedDate)
	assert.Equal(t, refDate, report.AsOfDate)
	assert.Equal(t, refDate, fx.store.returns[1].AsOfDate)
}

func TestFeatureEngineFallsBackToRequestedDate(t *testing.T) {
	fx := newEngineFixture(t)
	fx.store.latest = time.Time{}
	early := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

	report, err := fx.engine.Run(context.Background(), early)
	require.NoError(t, err)
	assert.Equal(t, early, report.AsOfDate)
}

func TestFeatureEngineRejectsConcurrentRun(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()
	ok, err := fx.cache.TryLock(ctx, lockKeyPrefix+"2024-03-15", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = fx.engine.Run(ctx, refDate)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Empty(t, fx.store.returns)
	assert.Empty(t, fx.pub.events)
}

func TestFeatureEngineSkipsPortfolioWithoutWeights(t *testing.T) {
	fx := newEngineFixture(t)
	fx.store.weights = nil

	report, err := fx.engine.Run(context.Background(), refDate)
	require.NoError(t, err)
	assert.False(t, report.PortfolioWritten)
	assert.Nil(t, fx.store.portfolio)
	assert.Equal(t, 3, report.SecuritiesWritten)
}

func TestFeatureEngineUnknownRoleTickerLeavesAlphaNil(t *testing.T) {
	fx := newEngineFixture(t)
	fx.engine.cfg.Roles[models.RoleGrowth] = "NDX"

	_, err := fx.engine.Run(context.Background(), refDate)
	require.NoError(t, err)
	require.NotNil(t, fx.store.portfolio)
	assert.Zero(t, fx.store.portfolio.Alpha.Growth.Defined())
	assert.NotNil(t, fx.store.portfolio.Alpha.Market.Return24h)
}

func TestFeatureEnginePublishFailureDoesNotFailRun(t *testing.T) {
	fx := newEngineFixture(t)
	fx.pub.err = errors.New("broker down")

	report, err := fx.engine.Run(context.Background(), refDate)
	require.NoError(t, err)
	assert.True(t, report.PortfolioWritten)
	assert.Equal(t, 1, fx.metrics.errors["publish_run"])
}
