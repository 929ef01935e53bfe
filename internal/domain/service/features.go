package service

import (
	"time"

	"EquityPulse/internal/domain/models"
)

// FeatureCalculator turns raw closes into feature records. Implementations
// must be pure: same inputs, same outputs, no I/O.
type FeatureCalculator interface {
	Security(securityID int64, asOf time.Time, series models.PriceSeries) models.ReturnRecord
	Benchmark(benchmarkID int64, asOf time.Time, series models.PriceSeries) models.BenchmarkReturnRecord
	// Portfolio returns nil when weights is empty.
	Portfolio(asOf time.Time, weights []models.PositionWeight, records []models.ReturnRecord, bench map[models.BenchmarkRole]models.Returns) *models.PortfolioRecord
}
