package repository

import (
	"math"
	"sort"
	"time"

	"EquityPulse/internal/domain/models"
)

const (
	defaultTriageLimit = 200
	maxTriageLimit     = 1000
)

func triageLimit(n int) int {
	if n <= 0 {
		return defaultTriageLimit
	}
	if n > maxTriageLimit {
		return maxTriageLimit
	}
	return n
}

// buildTriage left-joins every security with its weight and the feature row
// for asOf, then filters, orders (nil keys last, ticker as tie-break) and limits.
func buildTriage(secs []models.Security, weights []models.PositionWeight, recs []models.ReturnRecord, asOf time.Time, f models.TriageFilter) []models.TriageRow {
	weightByID := make(map[int64]float64, len(weights))
	for _, w := range weights {
		weightByID[w.SecurityID] += w.Weight
	}
	recByID := make(map[int64]models.ReturnRecord, len(recs))
	for _, r := range recs {
		recByID[r.SecurityID] = r
	}

	rows := make([]models.TriageRow, 0, len(secs))
	for _, sec := range secs {
		w := weightByID[sec.ID]
		if w < f.MinWeight {
			continue
		}
		row := models.TriageRow{SecurityID: sec.ID, Ticker: sec.Ticker, AsOfDate: asOf, Weight: w}
		if r, ok := recByID[sec.ID]; ok {
			row.Returns = r.Returns
			row.VolSpikeRatio = r.VolSpikeRatio
			row.Drawdown52w = r.Drawdown52w
			row.WhatChangedScore = r.WhatChangedScore
		}
		rows = append(rows, row)
	}

	key := triageKey(f.SortBy)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := key(rows[i]), key(rows[j])
		switch {
		case a != nil && b != nil && *a != *b:
			return *a > *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return rows[i].Ticker < rows[j].Ticker
	})

	if n := triageLimit(f.Limit); len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func triageKey(sortBy string) func(models.TriageRow) *float64 {
	switch sortBy {
	case models.TriageSortDrawdown:
		return func(r models.TriageRow) *float64 {
			if r.Drawdown52w == nil {
				return nil
			}
			v := math.Abs(*r.Drawdown52w)
			return &v
		}
	case models.TriageSortVolSpike:
		return func(r models.TriageRow) *float64 { return r.VolSpikeRatio }
	default:
		return func(r models.TriageRow) *float64 { return r.WhatChangedScore }
	}
}
