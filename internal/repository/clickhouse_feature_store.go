package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	pkgch "EquityPulse/pkg/clickhouse"
	applogger "EquityPulse/pkg/logger"
	"EquityPulse/pkg/util"
)

// CHFeatureStore implements domrepo.Store backed by ClickHouse. Feature
// tables are ReplacingMergeTree keyed like the Postgres primary keys, so a
// re-insert replaces the row; reads go through FINAL.
type CHFeatureStore struct {
	ch *pkgch.Client
	db *sql.DB
	t  domrepo.Tables
	l  *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client, tables domrepo.Tables) *CHFeatureStore {
	return &CHFeatureStore{ch: ch, db: ch.DB(), t: tables}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the feature tables when missing.
func (s *CHFeatureStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, ClickHouseSchema(s.t))
}

func (s *CHFeatureStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHFeatureStore) Close() error { return s.ch.Close() }

// --- price source ---

func (s *CHFeatureStore) LatestTradeDate(ctx context.Context, asOf time.Time) (time.Time, bool, error) {
	q := fmt.Sprintf(`SELECT max(trade_date), count() FROM %s WHERE trade_date <= ?`, s.t.Prices)
	return s.maxDate(ctx, "latest_trade_date", q, asOf)
}

// maxDate reads a (max(date), count()) pair. ClickHouse returns the epoch
// for max over no rows, so the count decides.
func (s *CHFeatureStore) maxDate(ctx context.Context, op, q string, args ...any) (time.Time, bool, error) {
	var (
		d time.Time
		n uint64
	)
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&d, &n); err != nil {
		s.logErr(op, err)
		return time.Time{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return time.Time{}, false, nil
	}
	return util.DateOnly(d), true, nil
}

func (s *CHFeatureStore) Securities(ctx context.Context) ([]models.Security, error) {
	q := fmt.Sprintf(`SELECT id, ticker FROM %s ORDER BY id`, s.t.SecurityMaster)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.logErr("securities", err)
		return nil, fmt.Errorf("list securities: %w", err)
	}
	defer rows.Close()

	var out []models.Security
	for rows.Next() {
		var sec models.Security
		if err := rows.Scan(&sec.ID, &sec.Ticker); err != nil {
			return nil, fmt.Errorf("scan security: %w", err)
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *CHFeatureStore) Benchmarks(ctx context.Context) ([]models.Benchmark, error) {
	q := fmt.Sprintf(`SELECT id, ticker, name FROM %s ORDER BY id`, s.t.Benchmarks)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.logErr("benchmarks", err)
		return nil, fmt.Errorf("list benchmarks: %w", err)
	}
	defer rows.Close()

	var out []models.Benchmark
	for rows.Next() {
		var b models.Benchmark
		if err := rows.Scan(&b.ID, &b.Ticker, &b.Name); err != nil {
			return nil, fmt.Errorf("scan benchmark: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *CHFeatureStore) SecuritySeries(ctx context.Context, securityID int64, asOf time.Time, lookbackDays int) (models.PriceSeries, error) {
	return s.series(ctx, s.t.Prices, "security_id", securityID, asOf, lookbackDays)
}

func (s *CHFeatureStore) BenchmarkSeries(ctx context.Context, benchmarkID int64, asOf time.Time, lookbackDays int) (models.PriceSeries, error) {
	return s.series(ctx, s.t.BenchmarkPrices, "benchmark_id", benchmarkID, asOf, lookbackDays)
}

func (s *CHFeatureStore) series(ctx context.Context, table, key string, id int64, asOf time.Time, lookbackDays int) (models.PriceSeries, error) {
	start := time.Now()
	const qtpl = `
        SELECT trade_date, close
        FROM %s
        WHERE %s = ? AND trade_date <= ? AND trade_date >= ?
        ORDER BY trade_date DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, table, key)
	rows, err := s.db.QueryContext(ctx, q, id, asOf, asOf.AddDate(0, 0, -lookbackDays), lookbackDays+1)
	if err != nil {
		s.logErr("series query", err, applogger.String("table", table), applogger.Int64("id", id))
		return nil, fmt.Errorf("price series %s=%d: %w", key, id, err)
	}
	defer rows.Close()

	out := make(models.PriceSeries, 0, lookbackDays+1)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.TradeDate, &p.Close); err != nil {
			s.logErr("series scan", err, applogger.String("table", table), applogger.Int64("id", id))
			return nil, fmt.Errorf("scan price: %w", err)
		}
		p.TradeDate = util.DateOnly(p.TradeDate)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse series ok",
			applogger.String("table", table),
			applogger.Int64("id", id),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// --- position source ---

func (s *CHFeatureStore) LatestWeights(ctx context.Context) ([]models.PositionWeight, error) {
	q := fmt.Sprintf(`
        SELECT security_id, as_of_date, weight FROM %[1]s
        WHERE as_of_date = (SELECT max(as_of_date) FROM %[1]s)
        ORDER BY security_id`, s.t.Positions)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.logErr("latest_weights", err)
		return nil, fmt.Errorf("latest weights: %w", err)
	}
	defer rows.Close()

	var out []models.PositionWeight
	for rows.Next() {
		var w models.PositionWeight
		if err := rows.Scan(&w.SecurityID, &w.AsOfDate, &w.Weight); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		w.AsOfDate = util.DateOnly(w.AsOfDate)
		out = append(out, w)
	}
	return out, rows.Err()
}

// --- feature writes ---

func (s *CHFeatureStore) UpsertReturn(ctx context.Context, rec *models.ReturnRecord) error {
	return s.insert(ctx, s.t.Returns, returnRecordColumns, returnRecordArgs(rec, chFloat))
}

func (s *CHFeatureStore) UpsertBenchmarkReturn(ctx context.Context, rec *models.BenchmarkReturnRecord) error {
	return s.insert(ctx, s.t.BenchmarkReturns, benchmarkRecordColumns, benchmarkRecordArgs(rec, chFloat))
}

func (s *CHFeatureStore) UpsertPortfolio(ctx context.Context, rec *models.PortfolioRecord) error {
	return s.insert(ctx, s.t.Portfolio, portfolioColumns, portfolioArgs(rec, chFloat))
}

func (s *CHFeatureStore) insert(ctx context.Context, table string, cols []string, args []any) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columnList(cols), questionPlaceholders(len(cols)))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.logErr("insert", err, applogger.String("table", table))
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// --- feature reads ---

func (s *CHFeatureStore) ReturnsForDate(ctx context.Context, asOf time.Time) ([]models.ReturnRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE as_of_date = ? ORDER BY security_id`,
		columnList(returnRecordColumns), s.t.Returns)
	return s.queryReturns(ctx, "returns_for_date", q, asOf)
}

func (s *CHFeatureStore) LatestReturns(ctx context.Context) ([]models.ReturnRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL ORDER BY security_id, as_of_date DESC LIMIT 1 BY security_id`,
		columnList(returnRecordColumns), s.t.Returns)
	return s.queryReturns(ctx, "latest_returns", q)
}

func (s *CHFeatureStore) queryReturns(ctx context.Context, op, q string, args ...any) ([]models.ReturnRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logErr(op, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.ReturnRecord
	for rows.Next() {
		var rec models.ReturnRecord
		if err := rows.Scan(returnRecordDest(&rec)...); err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		rec.AsOfDate = util.DateOnly(rec.AsOfDate)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *CHFeatureStore) GetReturn(ctx context.Context, securityID int64, asOf time.Time) (*models.ReturnRecord, error) {
	var rec models.ReturnRecord
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE security_id = ? AND as_of_date = ?`,
		columnList(returnRecordColumns), s.t.Returns)
	if err := s.db.QueryRowContext(ctx, q, securityID, asOf).Scan(returnRecordDest(&rec)...); err != nil {
		return nil, s.readErr("get_return", err)
	}
	rec.AsOfDate = util.DateOnly(rec.AsOfDate)
	return &rec, nil
}

func (s *CHFeatureStore) BenchmarkReturnsForDate(ctx context.Context, asOf time.Time) ([]models.BenchmarkReturnRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE as_of_date = ? ORDER BY benchmark_id`,
		columnList(benchmarkRecordColumns), s.t.BenchmarkReturns)
	rows, err := s.db.QueryContext(ctx, q, asOf)
	if err != nil {
		s.logErr("benchmark_returns_for_date", err)
		return nil, fmt.Errorf("benchmark returns for date: %w", err)
	}
	defer rows.Close()

	var out []models.BenchmarkReturnRecord
	for rows.Next() {
		var rec models.BenchmarkReturnRecord
		if err := rows.Scan(benchmarkRecordDest(&rec)...); err != nil {
			return nil, fmt.Errorf("scan benchmark return: %w", err)
		}
		rec.AsOfDate = util.DateOnly(rec.AsOfDate)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *CHFeatureStore) GetBenchmarkReturn(ctx context.Context, benchmarkID int64, asOf time.Time) (*models.BenchmarkReturnRecord, error) {
	var rec models.BenchmarkReturnRecord
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE benchmark_id = ? AND as_of_date = ?`,
		columnList(benchmarkRecordColumns), s.t.BenchmarkReturns)
	if err := s.db.QueryRowContext(ctx, q, benchmarkID, asOf).Scan(benchmarkRecordDest(&rec)...); err != nil {
		return nil, s.readErr("get_benchmark_return", err)
	}
	rec.AsOfDate = util.DateOnly(rec.AsOfDate)
	return &rec, nil
}

func (s *CHFeatureStore) GetPortfolio(ctx context.Context, asOf time.Time) (*models.PortfolioRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE as_of_date = ?`, columnList(portfolioColumns), s.t.Portfolio)
	return s.portfolio(ctx, "get_portfolio", q, asOf)
}

func (s *CHFeatureStore) LatestPortfolio(ctx context.Context) (*models.PortfolioRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL ORDER BY as_of_date DESC LIMIT 1`, columnList(portfolioColumns), s.t.Portfolio)
	return s.portfolio(ctx, "latest_portfolio", q)
}

func (s *CHFeatureStore) portfolio(ctx context.Context, op, q string, args ...any) (*models.PortfolioRecord, error) {
	var rec models.PortfolioRecord
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(portfolioDest(&rec)...); err != nil {
		return nil, s.readErr(op, err)
	}
	rec.AsOfDate = util.DateOnly(rec.AsOfDate)
	return &rec, nil
}

// Triage joins in process; ClickHouse LEFT JOIN fills defaults instead of
// NULL unless join_use_nulls is set, which would turn missing features into zeros.
func (s *CHFeatureStore) Triage(ctx context.Context, f models.TriageFilter) ([]models.TriageRow, error) {
	latest, ok, err := s.maxDate(ctx, "triage_latest",
		fmt.Sprintf(`SELECT max(as_of_date), count() FROM %s FINAL`, s.t.Returns))
	if err != nil || !ok {
		return nil, err
	}
	secs, err := s.Securities(ctx)
	if err != nil {
		return nil, err
	}
	weights, err := s.LatestWeights(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.ReturnsForDate(ctx, latest)
	if err != nil {
		return nil, err
	}
	return buildTriage(secs, weights, recs, latest, f), nil
}

func (s *CHFeatureStore) readErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domrepo.ErrNotFound
	}
	s.logErr(op, err)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *CHFeatureStore) logErr(op string, err error, fields ...applogger.Field) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse "+op+" error", append(fields, applogger.Error(err))...)
}

var _ domrepo.Store = (*CHFeatureStore)(nil)
