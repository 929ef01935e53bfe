package features

import "EquityPulse/internal/domain/models"

const (
    ShortVolWindow = 7
    LongVolWindow  = 60
    // DrawdownWindow approximates 52 weeks of trading days.
    DrawdownWindow = 260
)

// ComputeRisk derives volatility, spike ratio and 52-week drawdown.
// Needs at least two closes; otherwise every field is nil.
func ComputeRisk(series models.PriceSeries) models.RiskSignals {
    var out models.RiskSignals
    if len(series) < 2 {
        return out
    }
    s := series.NewestFirst()
    closes := Closes(s)
    changes := PctChanges(closes)

    if len(changes) >= ShortVolWindow {
        if v, ok := SampleStd(changes[:ShortVolWindow]); ok {
            out.Vol7d = finite(v)
        }
    }
    if len(changes) >= LongVolWindow {
        if v, ok := SampleStd(changes[:LongVolWindow]); ok {
            out.Vol60d = finite(v)
        }
    }
    if out.Vol7d != nil && out.Vol60d != nil && *out.Vol60d != 0 {
        out.VolSpikeRatio = finite(*out.Vol7d / *out.Vol60d)
    }

    window := closes[:min(DrawdownWindow, len(closes))]
    high := window[0]
    for _, c := range window[1:] {
        if c > high {
            high = c
        }
    }
    if high > 0 {
        out.Drawdown52w = finite((closes[0] - high) / high)
    }
    return out
}
