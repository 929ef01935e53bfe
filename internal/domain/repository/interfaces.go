package repository

import (
	"context"
	"errors"
	"time"

	"EquityPulse/internal/domain/models"
)

// ErrNotFound is returned by single-row reads when no row exists.
var ErrNotFound = errors.New("not found")

// PriceSource reads daily close history. It never writes.
type PriceSource interface {
	// LatestTradeDate returns the most recent security trade date on or
	// before asOf. ok is false when no price exists at all.
	LatestTradeDate(ctx context.Context, asOf time.Time) (d time.Time, ok bool, err error)
	Securities(ctx context.Context) ([]models.Security, error)
	Benchmarks(ctx context.Context) ([]models.Benchmark, error)
	// SecuritySeries returns at most lookbackDays+1 closes dated on or before
	// asOf and no older than lookbackDays calendar days. An entity without
	// history yields an empty series and a nil error.
	SecuritySeries(ctx context.Context, securityID int64, asOf time.Time, lookbackDays int) (models.PriceSeries, error)
	BenchmarkSeries(ctx context.Context, benchmarkID int64, asOf time.Time, lookbackDays int) (models.PriceSeries, error)
}

// PositionSource reads portfolio holdings.
type PositionSource interface {
	// LatestWeights returns the most recent position snapshot.
	LatestWeights(ctx context.Context) ([]models.PositionWeight, error)
}

// FeatureStore persists and serves computed features. Writes are
// idempotent upserts on the record key.
type FeatureStore interface {
	Init(ctx context.Context) error
	UpsertReturn(ctx context.Context, rec *models.ReturnRecord) error
	UpsertBenchmarkReturn(ctx context.Context, rec *models.BenchmarkReturnRecord) error
	UpsertPortfolio(ctx context.Context, rec *models.PortfolioRecord) error

	ReturnsForDate(ctx context.Context, asOf time.Time) ([]models.ReturnRecord, error)
	BenchmarkReturnsForDate(ctx context.Context, asOf time.Time) ([]models.BenchmarkReturnRecord, error)
	GetReturn(ctx context.Context, securityID int64, asOf time.Time) (*models.ReturnRecord, error)
	LatestReturns(ctx context.Context) ([]models.ReturnRecord, error)
	GetBenchmarkReturn(ctx context.Context, benchmarkID int64, asOf time.Time) (*models.BenchmarkReturnRecord, error)
	GetPortfolio(ctx context.Context, asOf time.Time) (*models.PortfolioRecord, error)
	LatestPortfolio(ctx context.Context) (*models.PortfolioRecord, error)
	// Triage lists every security against the latest feature date.
	Triage(ctx context.Context, f models.TriageFilter) ([]models.TriageRow, error)
}

// Store is the full backend: prices, positions and features in one database.
type Store interface {
	PriceSource
	PositionSource
	FeatureStore
	Health(ctx context.Context) error
	Close() error
}

// RunPublisher announces completed runs.
type RunPublisher interface {
	PublishRun(ctx context.Context, evt *models.FeaturesComputedEvent) error
	Close() error
}

// Metrics records engine and storage telemetry.
type Metrics interface {
	RecordEntityComputed(kind string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordRun(asOf time.Time, failures int, seconds float64)
}
