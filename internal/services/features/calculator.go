package features

import (
    "time"

    "EquityPulse/internal/domain/models"
    "EquityPulse/internal/domain/service"
)

// Calculator implements service.FeatureCalculator with the pure functions
// of this package.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

func (Calculator) Security(securityID int64, asOf time.Time, series models.PriceSeries) models.ReturnRecord {
    ret := ComputeReturns(series, asOf)
    risk := ComputeRisk(series)
    return models.ReturnRecord{
        SecurityID:       securityID,
        AsOfDate:         asOf,
        Returns:          ret,
        RiskSignals:      risk,
        WhatChangedScore: ChangeScore(ret, risk),
    }
}

func (Calculator) Benchmark(benchmarkID int64, asOf time.Time, series models.PriceSeries) models.BenchmarkReturnRecord {
    return models.BenchmarkReturnRecord{
        BenchmarkID: benchmarkID,
        AsOfDate:    asOf,
        Returns:     ComputeReturns(series, asOf),
    }
}

func (Calculator) Portfolio(asOf time.Time, weights []models.PositionWeight, records []models.ReturnRecord, bench map[models.BenchmarkRole]models.Returns) *models.PortfolioRecord {
    return BuildPortfolio(asOf, weights, records, bench)
}

var _ service.FeatureCalculator = (*Calculator)(nil)
