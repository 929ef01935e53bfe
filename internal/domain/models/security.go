package models

import (
	"sort"
	"time"
)

// Security is one tracked equity from the security master.
type Security struct {
	ID     int64  `json:"id" db:"id"`
	Ticker string `json:"ticker" db:"ticker"`
}

// BenchmarkRole names the comparison a benchmark is used for in alpha.
type BenchmarkRole string

const (
	RoleMarket   BenchmarkRole = "market"
	RoleGrowth   BenchmarkRole = "growth"
	RoleRiskFree BenchmarkRole = "risk_free"
)

// BenchmarkRoles lists every role in column order.
var BenchmarkRoles = []BenchmarkRole{RoleMarket, RoleGrowth, RoleRiskFree}

// Valid reports whether r is a known role.
func (r BenchmarkRole) Valid() bool {
	switch r {
	case RoleMarket, RoleGrowth, RoleRiskFree:
		return true
	}
	return false
}

// Benchmark is a reference index proxy (SPY, QQQ, TB3M, ...).
type Benchmark struct {
	ID     int64  `json:"id" db:"id"`
	Ticker string `json:"ticker" db:"ticker"`
	Name   string `json:"name,omitempty" db:"name"`
}

// PricePoint is one daily close.
type PricePoint struct {
	TradeDate time.Time `json:"trade_date" db:"trade_date"`
	Close     float64   `json:"close" db:"close"`
}

// PriceSeries holds daily closes for a single entity. Order is not
// guaranteed; use NewestFirst before positional access.
type PriceSeries []PricePoint

// NewestFirst returns a copy sorted by trade date descending.
func (s PriceSeries) NewestFirst() PriceSeries {
	out := make(PriceSeries, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TradeDate.After(out[j].TradeDate)
	})
	return out
}

// PositionWeight is a holding's portfolio weight on a snapshot date.
type PositionWeight struct {
	SecurityID int64     `json:"security_id" db:"security_id"`
	AsOfDate   time.Time `json:"as_of_date" db:"as_of_date"`
	Weight     float64   `json:"weight" db:"weight"`
}
