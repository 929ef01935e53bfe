package repository

import (
	"fmt"
	"strings"

	"EquityPulse/internal/domain/models"
)

var roleColumn = map[models.BenchmarkRole]string{
	models.RoleMarket:   "market",
	models.RoleGrowth:   "growth",
	models.RoleRiskFree: "riskfree",
}

func returnColumns() []string {
	out := make([]string, 0, len(models.Horizons))
	for _, h := range models.Horizons {
		out = append(out, "return_"+string(h))
	}
	return out
}

func alphaColumns(role models.BenchmarkRole) []string {
	out := make([]string, 0, len(models.Horizons))
	for _, h := range models.Horizons {
		out = append(out, fmt.Sprintf("alpha_vs_%s_%s", roleColumn[role], h))
	}
	return out
}

var (
	riskColumns = []string{"vol_7d", "vol_60d", "vol_spike_ratio", "drawdown_52w", "what_changed_score"}

	returnRecordColumns    = concat([]string{"security_id", "as_of_date"}, returnColumns(), riskColumns)
	benchmarkRecordColumns = concat([]string{"benchmark_id", "as_of_date"}, returnColumns())
	portfolioColumns       = buildPortfolioColumns()
)

func buildPortfolioColumns() []string {
	cols := concat([]string{"as_of_date"}, returnColumns())
	for _, role := range models.BenchmarkRoles {
		cols = append(cols, alphaColumns(role)...)
	}
	return cols
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}

// qualified prefixes every column with a table alias.
func qualified(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

// dollarPlaceholders renders $1..$n.
func dollarPlaceholders(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(out, ", ")
}

// questionPlaceholders renders ?, ?, ... n times.
func questionPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// excludedSet renders "c = EXCLUDED.c" for every non-key column.
func excludedSet(cols []string, keys ...string) string {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if skip[c] {
			continue
		}
		parts = append(parts, c+" = EXCLUDED."+c)
	}
	return strings.Join(parts, ", ")
}

// Scan destinations and bind arguments share column order with the lists above.

func returnsDest(r *models.Returns) []any {
	return []any{&r.Return24h, &r.Return7d, &r.ReturnMTD, &r.ReturnQTD, &r.ReturnYTD}
}

func returnsArgs(r models.Returns, bind func(*float64) any) []any {
	return []any{bind(r.Return24h), bind(r.Return7d), bind(r.ReturnMTD), bind(r.ReturnQTD), bind(r.ReturnYTD)}
}

func returnRecordDest(rec *models.ReturnRecord) []any {
	dest := []any{&rec.SecurityID, &rec.AsOfDate}
	dest = append(dest, returnsDest(&rec.Returns)...)
	return append(dest, &rec.Vol7d, &rec.Vol60d, &rec.VolSpikeRatio, &rec.Drawdown52w, &rec.WhatChangedScore)
}

func returnRecordArgs(rec *models.ReturnRecord, bind func(*float64) any) []any {
	args := []any{rec.SecurityID, rec.AsOfDate}
	args = append(args, returnsArgs(rec.Returns, bind)...)
	return append(args, bind(rec.Vol7d), bind(rec.Vol60d), bind(rec.VolSpikeRatio), bind(rec.Drawdown52w), bind(rec.WhatChangedScore))
}

func benchmarkRecordDest(rec *models.BenchmarkReturnRecord) []any {
	return append([]any{&rec.BenchmarkID, &rec.AsOfDate}, returnsDest(&rec.Returns)...)
}

func benchmarkRecordArgs(rec *models.BenchmarkReturnRecord, bind func(*float64) any) []any {
	return append([]any{rec.BenchmarkID, rec.AsOfDate}, returnsArgs(rec.Returns, bind)...)
}

func portfolioDest(rec *models.PortfolioRecord) []any {
	dest := append([]any{&rec.AsOfDate}, returnsDest(&rec.Returns)...)
	dest = append(dest, returnsDest(&rec.Alpha.Market)...)
	dest = append(dest, returnsDest(&rec.Alpha.Growth)...)
	return append(dest, returnsDest(&rec.Alpha.RiskFree)...)
}

func portfolioArgs(rec *models.PortfolioRecord, bind func(*float64) any) []any {
	args := append([]any{rec.AsOfDate}, returnsArgs(rec.Returns, bind)...)
	for _, role := range models.BenchmarkRoles {
		args = append(args, returnsArgs(rec.Alpha.For(role), bind)...)
	}
	return args
}
