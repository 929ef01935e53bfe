package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	"EquityPulse/pkg/util"
)

var refDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }

// closes builds consecutive calendar-day closes ending on end, oldest first.
func closes(end time.Time, values ...float64) models.PriceSeries {
	out := make(models.PriceSeries, len(values))
	for i, v := range values {
		out[i] = models.PricePoint{TradeDate: end.AddDate(0, 0, i-len(values)+1), Close: v}
	}
	return out
}

type memStore struct {
	mu sync.Mutex

	latest     time.Time
	securities []models.Security
	benchmarks []models.Benchmark
	secSeries  map[int64]models.PriceSeries
	benchSer   map[int64]models.PriceSeries
	weights    []models.PositionWeight

	seriesErr      map[int64]error
	writeErr       map[int64]error
	benchSeriesErr map[int64]error
	benchWriteErr  map[int64]error

	returns   map[int64]models.ReturnRecord
	benchRets map[int64]models.BenchmarkReturnRecord
	portfolio *models.PortfolioRecord
	triage    []models.TriageRow

	reads   map[string]int
	upserts map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		latest:    refDate,
		secSeries: map[int64]models.PriceSeries{},
		benchSer:  map[int64]models.PriceSeries{},
		seriesErr:      map[int64]error{},
		writeErr:       map[int64]error{},
		benchSeriesErr: map[int64]error{},
		benchWriteErr:  map[int64]error{},
		returns:        map[int64]models.ReturnRecord{},
		benchRets:      map[int64]models.BenchmarkReturnRecord{},
		reads:          map[string]int{},
		upserts:        map[string]int{},
	}
}

func (s *memStore) read(op string) {
	s.mu.Lock()
	s.reads[op]++
	s.mu.Unlock()
}

func (s *memStore) readCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[op]
}

func (s *memStore) LatestTradeDate(_ context.Context, asOf time.Time) (time.Time, bool, error) {
	if s.latest.IsZero() || s.latest.After(asOf) {
		return time.Time{}, false, nil
	}
	return s.latest, true, nil
}

func (s *memStore) Securities(context.Context) ([]models.Security, error) { return s.securities, nil }
func (s *memStore) Benchmarks(context.Context) ([]models.Benchmark, error) { return s.benchmarks, nil }

func (s *memStore) SecuritySeries(_ context.Context, id int64, _ time.Time, _ int) (models.PriceSeries, error) {
	if err := s.seriesErr[id]; err != nil {
		return nil, err
	}
	return s.secSeries[id], nil
}

func (s *memStore) upsertCount(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts[kind]
}

func (s *memStore) BenchmarkSeries(_ context.Context, id int64, _ time.Time, _ int) (models.PriceSeries, error) {
	if err := s.benchSeriesErr[id]; err != nil {
		return nil, err
	}
	return s.benchSer[id], nil
}

func (s *memStore) LatestWeights(context.Context) ([]models.PositionWeight, error) {
	return s.weights, nil
}

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) UpsertReturn(_ context.Context, rec *models.ReturnRecord) error {
	if err := s.writeErr[rec.SecurityID]; err != nil {
		return err
	}
	s.mu.Lock()
	s.returns[rec.SecurityID] = *rec
	s.upserts["security"]++
	s.mu.Unlock()
	return nil
}

func (s *memStore) UpsertBenchmarkReturn(_ context.Context, rec *models.BenchmarkReturnRecord) error {
	if err := s.benchWriteErr[rec.BenchmarkID]; err != nil {
		return err
	}
	s.mu.Lock()
	s.benchRets[rec.BenchmarkID] = *rec
	s.upserts["benchmark"]++
	s.mu.Unlock()
	return nil
}

func (s *memStore) UpsertPortfolio(_ context.Context, rec *models.PortfolioRecord) error {
	s.mu.Lock()
	cp := *rec
	s.portfolio = &cp
	s.upserts["portfolio"]++
	s.mu.Unlock()
	return nil
}

func (s *memStore) ReturnsForDate(_ context.Context, asOf time.Time) ([]models.ReturnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReturnRecord
	for _, r := range s.returns {
		if r.AsOfDate.Equal(asOf) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecurityID < out[j].SecurityID })
	return out, nil
}

func (s *memStore) BenchmarkReturnsForDate(_ context.Context, asOf time.Time) ([]models.BenchmarkReturnRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.BenchmarkReturnRecord
	for _, r := range s.benchRets {
		if r.AsOfDate.Equal(asOf) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) GetReturn(_ context.Context, id int64, asOf time.Time) (*models.ReturnRecord, error) {
	s.read("return")
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.returns[id]
	if !ok || !r.AsOfDate.Equal(asOf) {
		return nil, domrepo.ErrNotFound
	}
	return &r, nil
}

func (s *memStore) LatestReturns(context.Context) ([]models.ReturnRecord, error) {
	s.read("latest_returns")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReturnRecord, 0, len(s.returns))
	for _, r := range s.returns {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecurityID < out[j].SecurityID })
	return out, nil
}

func (s *memStore) GetBenchmarkReturn(_ context.Context, id int64, asOf time.Time) (*models.BenchmarkReturnRecord, error) {
	s.read("benchmark")
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.benchRets[id]
	if !ok || !r.AsOfDate.Equal(asOf) {
		return nil, domrepo.ErrNotFound
	}
	return &r, nil
}

func (s *memStore) GetPortfolio(_ context.Context, asOf time.Time) (*models.PortfolioRecord, error) {
	s.read("portfolio")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.portfolio == nil || !s.portfolio.AsOfDate.Equal(asOf) {
		return nil, domrepo.ErrNotFound
	}
	cp := *s.portfolio
	return &cp, nil
}

func (s *memStore) LatestPortfolio(context.Context) (*models.PortfolioRecord, error) {
	s.read("latest_portfolio")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.portfolio == nil {
		return nil, domrepo.ErrNotFound
	}
	cp := *s.portfolio
	return &cp, nil
}

func (s *memStore) Triage(_ context.Context, f models.TriageFilter) ([]models.TriageRow, error) {
	s.read("triage")
	out := s.triage
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                  { return nil }

var _ domrepo.Store = (*memStore)(nil)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.FeaturesComputedEvent
	err    error
}

func (p *recordingPublisher) PublishRun(_ context.Context, evt *models.FeaturesComputedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type countingMetrics struct {
	mu       sync.Mutex
	computed map[string]int
	errors   map[string]int
	runs     int
	lastRun  string
	failures int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{computed: map[string]int{}, errors: map[string]int{}}
}

func (m *countingMetrics) RecordEntityComputed(kind string) {
	m.mu.Lock()
	m.computed[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordLatency(string, float64) {}

func (m *countingMetrics) RecordRun(asOf time.Time, failures int, _ float64) {
	m.mu.Lock()
	m.runs++
	m.lastRun = util.FormatDate(asOf)
	m.failures = failures
	m.mu.Unlock()
}

var _ domrepo.Metrics = (*countingMetrics)(nil)
