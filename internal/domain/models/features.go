package models

import "time"

// Horizon is a return look-back period.
type Horizon string

const (
	Horizon24h Horizon = "24h"
	Horizon7d  Horizon = "7d"
	HorizonMTD Horizon = "mtd"
	HorizonQTD Horizon = "qtd"
	HorizonYTD Horizon = "ytd"
)

// Horizons lists every horizon in column order.
var Horizons = []Horizon{Horizon24h, Horizon7d, HorizonMTD, HorizonQTD, HorizonYTD}

// Returns holds one optional simple return per horizon. A nil field means
// the value could not be computed and must never be read as zero.
type Returns struct {
	Return24h *float64 `json:"return_24h" db:"return_24h"`
	Return7d  *float64 `json:"return_7d" db:"return_7d"`
	ReturnMTD *float64 `json:"return_mtd" db:"return_mtd"`
	ReturnQTD *float64 `json:"return_qtd" db:"return_qtd"`
	ReturnYTD *float64 `json:"return_ytd" db:"return_ytd"`
}

// Get returns the value for h.
func (r Returns) Get(h Horizon) *float64 {
	switch h {
	case Horizon24h:
		return r.Return24h
	case Horizon7d:
		return r.Return7d
	case HorizonMTD:
		return r.ReturnMTD
	case HorizonQTD:
		return r.ReturnQTD
	case HorizonYTD:
		return r.ReturnYTD
	}
	return nil
}

// Set stores v for h.
func (r *Returns) Set(h Horizon, v *float64) {
	switch h {
	case Horizon24h:
		r.Return24h = v
	case Horizon7d:
		r.Return7d = v
	case HorizonMTD:
		r.ReturnMTD = v
	case HorizonQTD:
		r.ReturnQTD = v
	case HorizonYTD:
		r.ReturnYTD = v
	}
}

// Defined counts horizons with a value.
func (r Returns) Defined() int {
	n := 0
	for _, h := range Horizons {
		if r.Get(h) != nil {
			n++
		}
	}
	return n
}

// RiskSignals are the volatility and drawdown features of one security.
type RiskSignals struct {
	Vol7d         *float64 `json:"vol_7d" db:"vol_7d"`
	Vol60d        *float64 `json:"vol_60d" db:"vol_60d"`
	VolSpikeRatio *float64 `json:"vol_spike_ratio" db:"vol_spike_ratio"`
	Drawdown52w   *float64 `json:"drawdown_52w" db:"drawdown_52w"`
}

// ReturnRecord is the persisted feature row for (security, as-of date).
type ReturnRecord struct {
	SecurityID int64     `json:"security_id" db:"security_id"`
	AsOfDate   time.Time `json:"as_of_date" db:"as_of_date"`
	Returns
	RiskSignals
	WhatChangedScore *float64 `json:"what_changed_score" db:"what_changed_score"`
}

// BenchmarkReturnRecord is the persisted row for (benchmark, as-of date).
type BenchmarkReturnRecord struct {
	BenchmarkID int64     `json:"benchmark_id" db:"benchmark_id"`
	AsOfDate    time.Time `json:"as_of_date" db:"as_of_date"`
	Returns
}

// AlphaSet holds portfolio minus benchmark returns for every role.
type AlphaSet struct {
	Market   Returns `json:"market"`
	Growth   Returns `json:"growth"`
	RiskFree Returns `json:"risk_free"`
}

// For returns the alpha row for role.
func (a AlphaSet) For(role BenchmarkRole) Returns {
	switch role {
	case RoleMarket:
		return a.Market
	case RoleGrowth:
		return a.Growth
	case RoleRiskFree:
		return a.RiskFree
	}
	return Returns{}
}

// Set stores the alpha row for role.
func (a *AlphaSet) Set(role BenchmarkRole, r Returns) {
	switch role {
	case RoleMarket:
		a.Market = r
	case RoleGrowth:
		a.Growth = r
	case RoleRiskFree:
		a.RiskFree = r
	}
}

// PortfolioRecord is the persisted roll-up for one as-of date.
type PortfolioRecord struct {
	AsOfDate time.Time `json:"as_of_date"`
	Returns
	Alpha AlphaSet `json:"alpha"`
}

// TriageRow is one line of the ranked monitoring view.
type TriageRow struct {
	SecurityID int64     `json:"security_id" db:"security_id"`
	Ticker     string    `json:"ticker" db:"ticker"`
	AsOfDate   time.Time `json:"as_of_date" db:"as_of_date"`
	Weight     float64   `json:"weight" db:"weight"`
	Returns
	VolSpikeRatio    *float64 `json:"vol_spike_ratio" db:"vol_spike_ratio"`
	Drawdown52w      *float64 `json:"drawdown_52w" db:"drawdown_52w"`
	WhatChangedScore *float64 `json:"what_changed_score" db:"what_changed_score"`
}

// Triage sort keys.
const (
	TriageSortScore    = "score"
	TriageSortDrawdown = "drawdown"
	TriageSortVolSpike = "vol_spike"
)

// TriageFilter narrows and orders the triage view.
type TriageFilter struct {
	SortBy    string
	MinWeight float64
	Limit     int
}

// EntityFailure records one security or benchmark that could not be processed.
type EntityFailure struct {
	Kind  string `json:"kind"`
	ID    int64  `json:"id"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// RunReport summarises one engine run.
type RunReport struct {
	RequestedDate     time.Time       `json:"requested_date"`
	AsOfDate          time.Time       `json:"as_of_date"`
	Securities        int             `json:"securities"`
	SecuritiesWritten int             `json:"securities_written"`
	Benchmarks        int             `json:"benchmarks"`
	BenchmarksWritten int             `json:"benchmarks_written"`
	PortfolioWritten  bool            `json:"portfolio_written"`
	Failures          []EntityFailure `json:"failures,omitempty"`
	StartedAt         time.Time       `json:"started_at"`
	Duration          time.Duration   `json:"duration_ns"`
}

// FeaturesComputedEvent is published after a successful run.
type FeaturesComputedEvent struct {
	AsOfDate          string `json:"as_of_date"`
	SecuritiesWritten int    `json:"securities_written"`
	BenchmarksWritten int    `json:"benchmarks_written"`
	PortfolioWritten  bool   `json:"portfolio_written"`
	Failures          int    `json:"failures"`
	ComputedAt        int64  `json:"computed_at"`
}

// PricesLoadedEvent is consumed to trigger a run once ingestion finishes.
type PricesLoadedEvent struct {
	AsOfDate string `json:"as_of_date"`
	Source   string `json:"source,omitempty"`
}
