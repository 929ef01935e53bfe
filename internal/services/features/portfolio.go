package features

import (
    "time"

    "EquityPulse/internal/domain/models"
)

// WeightedReturn pairs a holding weight with its optional return.
type WeightedReturn struct {
    Weight float64
    Return *float64
}

// WeightedSum folds weight*return over the pairs with a defined return.
// Weights of undefined entries are excluded, not redistributed, so the
// result understates the portfolio when coverage is incomplete.
// Nil when no pair is defined.
func WeightedSum(pairs []WeightedReturn) *float64 {
    var sum float64
    defined := false
    for _, p := range pairs {
        if p.Return == nil {
            continue
        }
        sum += p.Weight * *p.Return
        defined = true
    }
    if !defined {
        return nil
    }
    return finite(sum)
}

// AggregatePortfolio joins the weight snapshot with the day's return records
// and sums each horizon independently. Holdings without a record contribute
// to no horizon. ok is false when the snapshot is empty.
func AggregatePortfolio(weights []models.PositionWeight, records []models.ReturnRecord) (models.Returns, bool) {
    var out models.Returns
    if len(weights) == 0 {
        return out, false
    }
    byID := make(map[int64]models.Returns, len(records))
    for _, r := range records {
        byID[r.SecurityID] = r.Returns
    }
    for _, h := range models.Horizons {
        pairs := make([]WeightedReturn, 0, len(weights))
        for _, w := range weights {
            ret, ok := byID[w.SecurityID]
            if !ok {
                continue
            }
            pairs = append(pairs, WeightedReturn{Weight: w.Weight, Return: ret.Get(h)})
        }
        out.Set(h, WeightedSum(pairs))
    }
    return out, true
}

// Alpha is portfolio minus benchmark, nil if either side is nil.
func Alpha(portfolio, benchmark *float64) *float64 {
    if portfolio == nil || benchmark == nil {
        return nil
    }
    return finite(*portfolio - *benchmark)
}

// AlphaByRole computes per-horizon alpha for every role. A role missing from
// bench (no benchmark configured or no row for the date) gets all-nil alpha.
func AlphaByRole(portfolio models.Returns, bench map[models.BenchmarkRole]models.Returns) models.AlphaSet {
    var out models.AlphaSet
    for _, role := range models.BenchmarkRoles {
        b, ok := bench[role]
        if !ok {
            continue
        }
        var a models.Returns
        for _, h := range models.Horizons {
            a.Set(h, Alpha(portfolio.Get(h), b.Get(h)))
        }
        out.Set(role, a)
    }
    return out
}

// BuildPortfolio assembles the roll-up record. Nil when there are no weights.
func BuildPortfolio(asOf time.Time, weights []models.PositionWeight, records []models.ReturnRecord, bench map[models.BenchmarkRole]models.Returns) *models.PortfolioRecord {
    ret, ok := AggregatePortfolio(weights, records)
    if !ok {
        return nil
    }
    return &models.PortfolioRecord{
        AsOfDate: asOf,
        Returns:  ret,
        Alpha:    AlphaByRole(ret, bench),
    }
}
