package features

import (
    "math"

    "EquityPulse/internal/domain/models"
)

// Closes extracts close prices in series order.
func Closes(series models.PriceSeries) []float64 {
    out := make([]float64, len(series))
    for i, p := range series {
        out[i] = p.Close
    }
    return out
}

// PctChanges computes r_i = c[i+1]/c[i] - 1 for consecutive closes.
// With newest-first input each change is older/newer - 1. A zero base
// yields a non-finite change that stays in place, so any window covering it
// has an undefined std. Returns nil if fewer than 2 closes.
func PctChanges(closes []float64) []float64 {
    if len(closes) < 2 {
        return nil
    }
    out := make([]float64, 0, len(closes)-1)
    for i := 0; i+1 < len(closes); i++ {
        out = append(out, closes[i+1]/closes[i]-1)
    }
    return out
}

// SampleStd is the standard deviation with Bessel's correction (n-1).
// ok is false for fewer than 2 values.
func SampleStd(xs []float64) (float64, bool) {
    n := len(xs)
    if n < 2 {
        return 0, false
    }
    mean := 0.0
    for _, x := range xs {
        mean += x
    }
    mean /= float64(n)
    ss := 0.0
    for _, x := range xs {
        d := x - mean
        ss += d * d
    }
    return math.Sqrt(ss / float64(n-1)), true
}

func finite(v float64) *float64 {
    if math.IsNaN(v) || math.IsInf(v, 0) {
        return nil
    }
    return &v
}
