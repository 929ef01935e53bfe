package repository

import (
	"fmt"
	"strings"

	domrepo "EquityPulse/internal/domain/repository"
)

// PostgresSchema returns idempotent DDL for the engine-owned feature tables.
func PostgresSchema(t domrepo.Tables) []string {
	var stmts []string
	for _, ns := range namespaces(t.Returns, t.BenchmarkReturns, t.Portfolio) {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+ns)
	}
	stmts = append(stmts,
		pgTable(t.Returns, []string{"security_id BIGINT NOT NULL", "as_of_date DATE NOT NULL"},
			concat(returnColumns(), riskColumns), "security_id, as_of_date"),
		pgTable(t.BenchmarkReturns, []string{"benchmark_id BIGINT NOT NULL", "as_of_date DATE NOT NULL"},
			returnColumns(), "benchmark_id, as_of_date"),
		pgTable(t.Portfolio, []string{"as_of_date DATE NOT NULL"},
			portfolioColumns[1:], "as_of_date"),
	)
	return stmts
}

// ClickHouseSchema returns idempotent DDL for the feature tables. Rows are
// replaced by sorting key on merge; readers use FINAL.
func ClickHouseSchema(t domrepo.Tables) []string {
	var stmts []string
	for _, ns := range namespaces(t.Returns, t.BenchmarkReturns, t.Portfolio) {
		stmts = append(stmts, "CREATE DATABASE IF NOT EXISTS "+ns)
	}
	stmts = append(stmts,
		chTable(t.Returns, []string{"security_id Int64", "as_of_date Date"},
			concat(returnColumns(), riskColumns), "security_id, as_of_date"),
		chTable(t.BenchmarkReturns, []string{"benchmark_id Int64", "as_of_date Date"},
			returnColumns(), "benchmark_id, as_of_date"),
		chTable(t.Portfolio, []string{"as_of_date Date"},
			portfolioColumns[1:], "as_of_date"),
	)
	return stmts
}

func pgTable(name string, keys, values []string, pk string) string {
	cols := append([]string{}, keys...)
	for _, v := range values {
		cols = append(cols, v+" NUMERIC(20,6)")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s,\n\tPRIMARY KEY (%s)\n)",
		name, strings.Join(cols, ",\n\t"), pk)
}

func chTable(name string, keys, values []string, orderBy string) string {
	cols := append([]string{}, keys...)
	for _, v := range values {
		cols = append(cols, v+" Nullable(Float64)")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE = ReplacingMergeTree ORDER BY (%s)",
		name, strings.Join(cols, ",\n\t"), orderBy)
}

// namespaces returns the distinct schema/database prefixes of qualified names.
func namespaces(tables ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tables {
		i := strings.IndexByte(t, '.')
		if i <= 0 {
			continue
		}
		ns := t[:i]
		if !seen[ns] {
			seen[ns] = true
			out = append(out, ns)
		}
	}
	return out
}
