package usecase

import (
	"context"
	"errors"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	"EquityPulse/pkg/cache"
	applogger "EquityPulse/pkg/logger"
	"EquityPulse/pkg/util"
)

// QueryCache is a read-through cache for query results.
type QueryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// FeatureQuery serves persisted features. Results are cached until the
// next run invalidates them or ttl passes.
type FeatureQuery struct {
	store domrepo.FeatureStore
	cache QueryCache
	ttl   time.Duration
	l     *applogger.Logger
}

func NewFeatureQuery(store domrepo.FeatureStore, c QueryCache, ttl time.Duration, l *applogger.Logger) *FeatureQuery {
	if l == nil {
		l = applogger.NewNop()
	}
	return &FeatureQuery{store: store, cache: c, ttl: ttl, l: l}
}

// Return loads one security's features. A zero asOf selects its most
// recent row.
func (q *FeatureQuery) Return(ctx context.Context, securityID int64, asOf time.Time) (*models.ReturnRecord, error) {
	if asOf.IsZero() {
		latest, err := q.LatestReturns(ctx)
		if err != nil {
			return nil, err
		}
		for i := range latest {
			if latest[i].SecurityID == securityID {
				return &latest[i], nil
			}
		}
		return nil, domrepo.ErrNotFound
	}
	key := cache.GenerateKeyWithParams(queryKeyPrefix+"return", securityID, util.FormatDate(asOf))
	return cached(ctx, q, key, func() (*models.ReturnRecord, error) {
		return q.store.GetReturn(ctx, securityID, asOf)
	})
}

// LatestReturns lists each security's most recent feature row.
func (q *FeatureQuery) LatestReturns(ctx context.Context) ([]models.ReturnRecord, error) {
	return cached(ctx, q, queryKeyPrefix+"returns:latest", func() ([]models.ReturnRecord, error) {
		return q.store.LatestReturns(ctx)
	})
}

func (q *FeatureQuery) BenchmarkReturn(ctx context.Context, benchmarkID int64, asOf time.Time) (*models.BenchmarkReturnRecord, error) {
	key := cache.GenerateKeyWithParams(queryKeyPrefix+"benchmark", benchmarkID, util.FormatDate(asOf))
	return cached(ctx, q, key, func() (*models.BenchmarkReturnRecord, error) {
		return q.store.GetBenchmarkReturn(ctx, benchmarkID, asOf)
	})
}

// Portfolio loads the roll-up for asOf, or the latest one when asOf is zero.
func (q *FeatureQuery) Portfolio(ctx context.Context, asOf time.Time) (*models.PortfolioRecord, error) {
	if asOf.IsZero() {
		return cached(ctx, q, queryKeyPrefix+"portfolio:latest", func() (*models.PortfolioRecord, error) {
			return q.store.LatestPortfolio(ctx)
		})
	}
	key := cache.GenerateKeyWithParams(queryKeyPrefix+"portfolio", util.FormatDate(asOf))
	return cached(ctx, q, key, func() (*models.PortfolioRecord, error) {
		return q.store.GetPortfolio(ctx, asOf)
	})
}

func (q *FeatureQuery) Triage(ctx context.Context, f models.TriageFilter) ([]models.TriageRow, error) {
	key := cache.GenerateKeyWithParams(queryKeyPrefix+"triage", f.SortBy, f.MinWeight, f.Limit)
	return cached(ctx, q, key, func() ([]models.TriageRow, error) {
		return q.store.Triage(ctx, f)
	})
}

// cached reads key from the cache or fills it from load. Cache faults never
// fail the request; ErrNotFound is not cached.
func cached[T any](ctx context.Context, q *FeatureQuery, key string, load func() (T, error)) (T, error) {
	var out T
	if q.cache != nil {
		err := q.cache.Get(ctx, key, &out)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			q.l.Warn("query cache read failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	out, err := load()
	if err != nil {
		return out, err
	}
	if q.cache != nil {
		if err := q.cache.Set(ctx, key, out, q.ttl); err != nil {
			q.l.Warn("query cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return out, nil
}
