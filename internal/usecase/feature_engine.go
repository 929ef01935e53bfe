package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	domsvc "EquityPulse/internal/domain/service"
	applogger "EquityPulse/pkg/logger"
	"EquityPulse/pkg/util"
)

// ErrRunInProgress is returned when another run holds the lock for the date.
var ErrRunInProgress = errors.New("feature run already in progress")

const (
	lockKeyPrefix  = "features:lock:"
	queryKeyPrefix = "features:q:"
)

// RunCache is the slice of the cache the engine needs: a per-date run lock
// and invalidation of cached query results.
type RunCache interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// FeatureRunner computes and persists every feature for one as-of date.
type FeatureRunner interface {
	Run(ctx context.Context, asOf time.Time) (*models.RunReport, error)
}

// EngineConfig tunes a FeatureEngine.
type EngineConfig struct {
	LookbackDays int
	Workers      int
	LockTTL      time.Duration
	// Roles maps each alpha role to a benchmark ticker.
	Roles map[models.BenchmarkRole]string
}

// FeatureEngine runs the daily pipeline: securities, then benchmarks, then
// the portfolio roll-up that reads both back from the store.
type FeatureEngine struct {
	prices    domrepo.PriceSource
	positions domrepo.PositionSource
	features  domrepo.FeatureStore
	calc      domsvc.FeatureCalculator
	pub       domrepo.RunPublisher
	cache     RunCache
	metrics   domrepo.Metrics
	l         *applogger.Logger
	cfg       EngineConfig
}

func NewFeatureEngine(
	store domrepo.Store,
	calc domsvc.FeatureCalculator,
	pub domrepo.RunPublisher,
	cache RunCache,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	cfg EngineConfig,
) *FeatureEngine {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 400
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	if l == nil {
		l = applogger.NewNop()
	}
	for role := range cfg.Roles {
		if !role.Valid() {
			l.Warn("ignoring unknown benchmark role", applogger.String("role", string(role)))
			delete(cfg.Roles, role)
		}
	}
	return &FeatureEngine{
		prices:    store,
		positions: store,
		features:  store,
		calc:      calc,
		pub:       pub,
		cache:     cache,
		metrics:   metrics,
		l:         l,
		cfg:       cfg,
	}
}

// Run computes features for asOf (today when zero). The date is first
// resolved to the latest trading day on or before it. Per-entity failures
// are collected in the report; only failures that make the run meaningless
// are returned as errors.
func (e *FeatureEngine) Run(ctx context.Context, asOf time.Time) (*models.RunReport, error) {
	start := time.Now()
	requested := util.DateOnly(asOf)
	if asOf.IsZero() {
		requested = util.Today()
	}

	resolved, err := e.resolveDate(ctx, requested)
	if err != nil {
		e.metrics.RecordError("resolve_date")
		return nil, err
	}

	release, err := e.acquire(ctx, resolved)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &models.RunReport{RequestedDate: requested, AsOfDate: resolved, StartedAt: start}
	e.l.Info("feature run started",
		applogger.Date("requested", requested),
		applogger.Date("as_of", resolved),
	)

	secs, err := e.prices.Securities(ctx)
	if err != nil {
		e.metrics.RecordError("list_securities")
		return nil, fmt.Errorf("list securities: %w", err)
	}
	report.Securities = len(secs)
	e.computeSecurities(ctx, resolved, secs, report)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	benches, err := e.prices.Benchmarks(ctx)
	if err != nil {
		e.metrics.RecordError("list_benchmarks")
		return nil, fmt.Errorf("list benchmarks: %w", err)
	}
	report.Benchmarks = len(benches)
	e.computeBenchmarks(ctx, resolved, benches, report)

	if err := e.computePortfolio(ctx, resolved, benches, report); err != nil {
		e.metrics.RecordError("portfolio")
		return nil, err
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		a, b := report.Failures[i], report.Failures[j]
		if a.Kind != b.Kind {
			return a.Kind > b.Kind // securities before benchmarks
		}
		return a.ID < b.ID
	})
	report.Duration = time.Since(start)

	e.publish(ctx, report)
	if err := e.cache.DeleteByPattern(ctx, queryKeyPrefix+"*"); err != nil {
		e.l.Warn("query cache invalidation failed", applogger.Error(err))
	}
	e.metrics.RecordRun(resolved, len(report.Failures), report.Duration.Seconds())

	e.l.Info("feature run finished",
		applogger.Date("as_of", resolved),
		applogger.Int("securities_written", report.SecuritiesWritten),
		applogger.Int("benchmarks_written", report.BenchmarksWritten),
		applogger.Bool("portfolio_written", report.PortfolioWritten),
		applogger.Int("failures", len(report.Failures)),
		applogger.Duration("duration_ms", report.Duration),
	)
	return report, nil
}

// resolveDate returns the latest trade date on or before requested, or
// requested itself when the price table has nothing that old.
func (e *FeatureEngine) resolveDate(ctx context.Context, requested time.Time) (time.Time, error) {
	d, ok, err := e.prices.LatestTradeDate(ctx, requested)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve as-of date: %w", err)
	}
	if !ok {
		e.l.Warn("no trade date on or before requested date, using it as is", applogger.Date("requested", requested))
		return requested, nil
	}
	return d, nil
}

func (e *FeatureEngine) acquire(ctx context.Context, asOf time.Time) (func(), error) {
	key := lockKeyPrefix + util.FormatDate(asOf)
	ok, err := e.cache.TryLock(ctx, key, e.cfg.LockTTL)
	if err != nil {
		e.metrics.RecordError("lock")
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.cache.Unlock(ctx, key); err != nil {
			e.l.Warn("release run lock failed", applogger.String("key", key), applogger.Error(err))
		}
	}, nil
}

// runTally collects per-entity outcomes from concurrent workers.
type runTally struct {
	mu       sync.Mutex
	written  int
	failures []models.EntityFailure
}

func (t *runTally) ok() {
	t.mu.Lock()
	t.written++
	t.mu.Unlock()
}

func (t *runTally) fail(kind string, id int64, stage string, err error) {
	t.mu.Lock()
	t.failures = append(t.failures, models.EntityFailure{Kind: kind, ID: id, Stage: stage, Error: err.Error()})
	t.mu.Unlock()
}

func (e *FeatureEngine) computeSecurities(ctx context.Context, asOf time.Time, secs []models.Security, report *models.RunReport) {
	jobs := make(chan models.Security)
	tally := &runTally{}

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sec := range jobs {
				e.computeSecurity(ctx, asOf, sec, tally)
			}
		}()
	}

feed:
	for _, sec := range secs {
		select {
		case jobs <- sec:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report.SecuritiesWritten = tally.written
	report.Failures = append(report.Failures, tally.failures...)
}

func (e *FeatureEngine) computeSecurity(ctx context.Context, asOf time.Time, sec models.Security, tally *runTally) {
	start := time.Now()
	series, err := e.prices.SecuritySeries(ctx, sec.ID, asOf, e.cfg.LookbackDays)
	if err != nil {
		e.entityFailed("security", sec.ID, "load", err, tally)
		return
	}
	rec := e.calc.Security(sec.ID, asOf, series)
	if err := e.features.UpsertReturn(ctx, &rec); err != nil {
		e.entityFailed("security", sec.ID, "write", err, tally)
		return
	}
	tally.ok()
	e.metrics.RecordEntityComputed("security")
	e.metrics.RecordLatency("security_compute", time.Since(start).Seconds())
}

func (e *FeatureEngine) computeBenchmarks(ctx context.Context, asOf time.Time, benches []models.Benchmark, report *models.RunReport) {
	tally := &runTally{}
	for _, b := range benches {
		if ctx.Err() != nil {
			break
		}
		series, err := e.prices.BenchmarkSeries(ctx, b.ID, asOf, e.cfg.LookbackDays)
		if err != nil {
			e.entityFailed("benchmark", b.ID, "load", err, tally)
			continue
		}
		rec := e.calc.Benchmark(b.ID, asOf, series)
		if err := e.features.UpsertBenchmarkReturn(ctx, &rec); err != nil {
			e.entityFailed("benchmark", b.ID, "write", err, tally)
			continue
		}
		tally.ok()
		e.metrics.RecordEntityComputed("benchmark")
	}
	report.BenchmarksWritten = tally.written
	report.Failures = append(report.Failures, tally.failures...)
}

func (e *FeatureEngine) entityFailed(kind string, id int64, stage string, err error, tally *runTally) {
	tally.fail(kind, id, stage, err)
	e.metrics.RecordError(kind + "_" + stage)
	e.l.Error(kind+" feature failed",
		applogger.Int64("id", id),
		applogger.String("stage", stage),
		applogger.Error(err),
	)
}

// computePortfolio aggregates the persisted security rows for asOf with the
// latest position snapshot. No snapshot means no portfolio row.
func (e *FeatureEngine) computePortfolio(ctx context.Context, asOf time.Time, benches []models.Benchmark, report *models.RunReport) error {
	weights, err := e.positions.LatestWeights(ctx)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	if len(weights) == 0 {
		e.l.Warn("no position snapshot, portfolio skipped", applogger.Date("as_of", asOf))
		return nil
	}

	records, err := e.features.ReturnsForDate(ctx, asOf)
	if err != nil {
		return fmt.Errorf("load security features: %w", err)
	}
	benchRecs, err := e.features.BenchmarkReturnsForDate(ctx, asOf)
	if err != nil {
		return fmt.Errorf("load benchmark features: %w", err)
	}

	rec := e.calc.Portfolio(asOf, weights, records, e.roleReturns(benches, benchRecs))
	if rec == nil {
		return nil
	}
	if err := e.features.UpsertPortfolio(ctx, rec); err != nil {
		return fmt.Errorf("write portfolio: %w", err)
	}
	report.PortfolioWritten = true
	e.metrics.RecordEntityComputed("portfolio")

	var total float64
	for _, w := range weights {
		total += w.Weight
	}
	e.l.Debug("portfolio written",
		applogger.Date("snapshot", weights[0].AsOfDate),
		applogger.Int("positions", len(weights)),
		applogger.Float64("total_weight", total),
	)
	return nil
}

// roleReturns resolves configured role tickers to benchmark rows. Roles
// whose ticker is unknown or has no row for the date are left out.
func (e *FeatureEngine) roleReturns(benches []models.Benchmark, recs []models.BenchmarkReturnRecord) map[models.BenchmarkRole]models.Returns {
	idByTicker := make(map[string]int64, len(benches))
	for _, b := range benches {
		idByTicker[b.Ticker] = b.ID
	}
	retByID := make(map[int64]models.Returns, len(recs))
	for _, r := range recs {
		retByID[r.BenchmarkID] = r.Returns
	}

	out := make(map[models.BenchmarkRole]models.Returns, len(e.cfg.Roles))
	for role, ticker := range e.cfg.Roles {
		id, ok := idByTicker[ticker]
		if !ok {
			e.l.Warn("benchmark role ticker not found", applogger.String("role", string(role)), applogger.String("ticker", ticker))
			continue
		}
		if r, ok := retByID[id]; ok {
			out[role] = r
		}
	}
	return out
}

func (e *FeatureEngine) publish(ctx context.Context, report *models.RunReport) {
	evt := &models.FeaturesComputedEvent{
		AsOfDate:          util.FormatDate(report.AsOfDate),
		SecuritiesWritten: report.SecuritiesWritten,
		BenchmarksWritten: report.BenchmarksWritten,
		PortfolioWritten:  report.PortfolioWritten,
		Failures:          len(report.Failures),
		ComputedAt:        time.Now().Unix(),
	}
	if err := e.pub.PublishRun(ctx, evt); err != nil {
		e.metrics.RecordError("publish_run")
		e.l.Error("publish run event failed", applogger.String("as_of", evt.AsOfDate), applogger.Error(err))
	}
}

var _ FeatureRunner = (*FeatureEngine)(nil)
