package features

import (
    "math"

    "EquityPulse/internal/domain/models"
)

// ChangeScore ranks how much a security moved:
// |return_7d|*10 + vol_spike_ratio + |drawdown_52w|*10 over the defined
// terms. Nil when none of the three is defined.
func ChangeScore(ret models.Returns, risk models.RiskSignals) *float64 {
    if ret.Return7d == nil && risk.VolSpikeRatio == nil && risk.Drawdown52w == nil {
        return nil
    }
    score := 0.0
    if ret.Return7d != nil {
        score += math.Abs(*ret.Return7d) * 10
    }
    if risk.VolSpikeRatio != nil {
        score += *risk.VolSpikeRatio
    }
    if risk.Drawdown52w != nil {
        score += math.Abs(*risk.Drawdown52w) * 10
    }
    return &score
}
