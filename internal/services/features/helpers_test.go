package features

import (
    "time"

    "EquityPulse/internal/domain/models"
)

func day(s string) time.Time {
    t, err := time.Parse("2006-01-02", s)
    if err != nil {
        panic(err)
    }
    return t
}

// daily builds consecutive calendar-day closes ending at the last value, oldest first.
func daily(start string, closes ...float64) models.PriceSeries {
    d := day(start)
    out := make(models.PriceSeries, len(closes))
    for i, c := range closes {
        out[i] = models.PricePoint{TradeDate: d.AddDate(0, 0, i), Close: c}
    }
    return out
}

func pt(date string, c float64) models.PricePoint {
    return models.PricePoint{TradeDate: day(date), Close: c}
}

func f(v float64) *float64 { return &v }
