package features

import (
    "time"

    "EquityPulse/internal/domain/models"
    "EquityPulse/pkg/util"
)

// ComputeReturns derives the five horizon returns at asOf from a close
// series. The latest close is the reference price p0. 24h uses the previous
// entry by position, so it spans weekends and holidays. The other horizons
// use the most recent close dated on or before asOf-7d (7d) or strictly
// before the month, quarter and year start.
func ComputeReturns(series models.PriceSeries, asOf time.Time) models.Returns {
    var out models.Returns
    if len(series) == 0 {
        return out
    }
    s := series.NewestFirst()
    p0 := s[0].Close
    if p0 == 0 {
        return out
    }
    asOf = util.DateOnly(asOf)

    if len(s) >= 2 {
        out.Return24h = simpleReturn(p0, s[1].Close, true)
    }
    weekAgo := asOf.AddDate(0, 0, -7)
    base, ok := latestWhere(s, func(d time.Time) bool { return !d.After(weekAgo) })
    out.Return7d = simpleReturn(p0, base, ok)
    base, ok = latestBefore(s, util.MonthStart(asOf))
    out.ReturnMTD = simpleReturn(p0, base, ok)
    base, ok = latestBefore(s, util.QuarterStart(asOf))
    out.ReturnQTD = simpleReturn(p0, base, ok)
    base, ok = latestBefore(s, util.YearStart(asOf))
    out.ReturnYTD = simpleReturn(p0, base, ok)
    return out
}

func latestBefore(newestFirst models.PriceSeries, boundary time.Time) (float64, bool) {
    return latestWhere(newestFirst, func(d time.Time) bool { return d.Before(boundary) })
}

// latestWhere returns the close of the newest point whose date satisfies ok.
func latestWhere(newestFirst models.PriceSeries, ok func(time.Time) bool) (float64, bool) {
    for _, p := range newestFirst {
        if ok(util.DateOnly(p.TradeDate)) {
            return p.Close, true
        }
    }
    return 0, false
}

func simpleReturn(p0, base float64, found bool) *float64 {
    if !found || base == 0 {
        return nil
    }
    return finite(p0/base - 1)
}
