package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	applogger "EquityPulse/pkg/logger"
	pkgpg "EquityPulse/pkg/postgres"
	"EquityPulse/pkg/util"

	"github.com/jmoiron/sqlx"
)

// PGStore implements domrepo.Store on PostgreSQL. Input tables are read
// only; feature tables are written with INSERT ... ON CONFLICT DO UPDATE.
type PGStore struct {
	pg      *pkgpg.Client
	db      *sqlx.DB
	t       domrepo.Tables
	timeout time.Duration
	l       *applogger.Logger
}

func NewPGStore(pg *pkgpg.Client, tables domrepo.Tables, timeout time.Duration) *PGStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PGStore{pg: pg, db: pg.DB(), t: tables, timeout: timeout}
}

// SetLogger injects a structured logger.
func (s *PGStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the feature tables when missing.
func (s *PGStore) Init(ctx context.Context) error { return s.pg.InitSchema(ctx, PostgresSchema(s.t)) }

func (s *PGStore) Health(ctx context.Context) error { return s.pg.Health(ctx) }

func (s *PGStore) Close() error { return s.pg.Close() }

// --- price source ---

func (s *PGStore) LatestTradeDate(ctx context.Context, asOf time.Time) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d sql.NullTime
	q := fmt.Sprintf(`SELECT MAX(trade_date) FROM %s WHERE trade_date <= $1`, s.t.Prices)
	if err := s.db.QueryRowxContext(ctx, q, asOf).Scan(&d); err != nil {
		s.logErr("latest_trade_date", err)
		return time.Time{}, false, fmt.Errorf("latest trade date: %w", err)
	}
	if !d.Valid {
		return time.Time{}, false, nil
	}
	return util.DateOnly(d.Time), true, nil
}

func (s *PGStore) Securities(ctx context.Context) ([]models.Security, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.Security
	q := fmt.Sprintf(`SELECT id, ticker FROM %s ORDER BY id`, s.t.SecurityMaster)
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		s.logErr("securities", err)
		return nil, fmt.Errorf("list securities: %w", err)
	}
	return out, nil
}

func (s *PGStore) Benchmarks(ctx context.Context) ([]models.Benchmark, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.Benchmark
	q := fmt.Sprintf(`SELECT id, ticker, COALESCE(name, '') AS name FROM %s ORDER BY id`, s.t.Benchmarks)
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		s.logErr("benchmarks", err)
		return nil, fmt.Errorf("list benchmarks: %w", err)
	}
	return out, nil
}

func (s *PGStore) SecuritySeries(ctx context.Context, securityID int64, asOf time.Time, lookbackDays int) (models.PriceSeries, error) {
	return s.series(ctx, s.t.Prices, "security_id", securityID, asOf, lookbackDays)
}

func (s *PGStore) BenchmarkSeries(ctx context.Context, benchmarkID int64, asOf time.Time, lookbackDays int) (models.PriceSeries, error) {
	return s.series(ctx, s.t.BenchmarkPrices, "benchmark_id", benchmarkID, asOf, lookbackDays)
}

func (s *PGStore) series(ctx context.Context, table, key string, id int64, asOf time.Time, lookbackDays int) (models.PriceSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`
		SELECT trade_date, close FROM %s
		WHERE %s = $1 AND trade_date <= $2 AND trade_date >= $3
		ORDER BY trade_date DESC
		LIMIT $4`, table, key)
	var out models.PriceSeries
	from := asOf.AddDate(0, 0, -lookbackDays)
	if err := s.db.SelectContext(ctx, &out, q, id, asOf, from, lookbackDays+1); err != nil {
		s.logErr("series", err, applogger.String("table", table), applogger.Int64("id", id))
		return nil, fmt.Errorf("price series %s=%d: %w", key, id, err)
	}
	for i := range out {
		out[i].TradeDate = util.DateOnly(out[i].TradeDate)
	}
	return out, nil
}

// --- position source ---

func (s *PGStore) LatestWeights(ctx context.Context) ([]models.PositionWeight, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`
		SELECT security_id, as_of_date, weight FROM %[1]s
		WHERE as_of_date = (SELECT MAX(as_of_date) FROM %[1]s)
		ORDER BY security_id`, s.t.Positions)
	var out []models.PositionWeight
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		s.logErr("latest_weights", err)
		return nil, fmt.Errorf("latest weights: %w", err)
	}
	for i := range out {
		out[i].AsOfDate = util.DateOnly(out[i].AsOfDate)
	}
	return out, nil
}

// --- feature writes ---

func (s *PGStore) UpsertReturn(ctx context.Context, rec *models.ReturnRecord) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (security_id, as_of_date) DO UPDATE SET %s`,
		s.t.Returns, columnList(returnRecordColumns), dollarPlaceholders(len(returnRecordColumns)),
		excludedSet(returnRecordColumns, "security_id", "as_of_date"))
	return s.exec(ctx, "upsert_return", q, returnRecordArgs(rec, pgNumeric)...)
}

func (s *PGStore) UpsertBenchmarkReturn(ctx context.Context, rec *models.BenchmarkReturnRecord) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (benchmark_id, as_of_date) DO UPDATE SET %s`,
		s.t.BenchmarkReturns, columnList(benchmarkRecordColumns), dollarPlaceholders(len(benchmarkRecordColumns)),
		excludedSet(benchmarkRecordColumns, "benchmark_id", "as_of_date"))
	return s.exec(ctx, "upsert_benchmark_return", q, benchmarkRecordArgs(rec, pgNumeric)...)
}

func (s *PGStore) UpsertPortfolio(ctx context.Context, rec *models.PortfolioRecord) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (as_of_date) DO UPDATE SET %s`,
		s.t.Portfolio, columnList(portfolioColumns), dollarPlaceholders(len(portfolioColumns)),
		excludedSet(portfolioColumns, "as_of_date"))
	return s.exec(ctx, "upsert_portfolio", q, portfolioArgs(rec, pgNumeric)...)
}

func (s *PGStore) exec(ctx context.Context, op, q string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.logErr(op, err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// --- feature reads ---

func (s *PGStore) ReturnsForDate(ctx context.Context, asOf time.Time) ([]models.ReturnRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE as_of_date = $1 ORDER BY security_id`,
		columnList(returnRecordColumns), s.t.Returns)
	return s.selectReturns(ctx, "returns_for_date", q, asOf)
}

func (s *PGStore) LatestReturns(ctx context.Context) ([]models.ReturnRecord, error) {
	q := fmt.Sprintf(`SELECT DISTINCT ON (security_id) %s FROM %s ORDER BY security_id, as_of_date DESC`,
		columnList(returnRecordColumns), s.t.Returns)
	return s.selectReturns(ctx, "latest_returns", q)
}

func (s *PGStore) selectReturns(ctx context.Context, op, q string, args ...any) ([]models.ReturnRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.ReturnRecord
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		s.logErr(op, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range out {
		out[i].AsOfDate = util.DateOnly(out[i].AsOfDate)
	}
	return out, nil
}

func (s *PGStore) GetReturn(ctx context.Context, securityID int64, asOf time.Time) (*models.ReturnRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec models.ReturnRecord
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE security_id = $1 AND as_of_date = $2`,
		columnList(returnRecordColumns), s.t.Returns)
	if err := s.db.GetContext(ctx, &rec, q, securityID, asOf); err != nil {
		return nil, s.readErr("get_return", err)
	}
	rec.AsOfDate = util.DateOnly(rec.AsOfDate)
	return &rec, nil
}

func (s *PGStore) BenchmarkReturnsForDate(ctx context.Context, asOf time.Time) ([]models.BenchmarkReturnRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.BenchmarkReturnRecord
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE as_of_date = $1 ORDER BY benchmark_id`,
		columnList(benchmarkRecordColumns), s.t.BenchmarkReturns)
	if err := s.db.SelectContext(ctx, &out, q, asOf); err != nil {
		s.logErr("benchmark_returns_for_date", err)
		return nil, fmt.Errorf("benchmark returns for date: %w", err)
	}
	for i := range out {
		out[i].AsOfDate = util.DateOnly(out[i].AsOfDate)
	}
	return out, nil
}

func (s *PGStore) GetBenchmarkReturn(ctx context.Context, benchmarkID int64, asOf time.Time) (*models.BenchmarkReturnRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec models.BenchmarkReturnRecord
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE benchmark_id = $1 AND as_of_date = $2`,
		columnList(benchmarkRecordColumns), s.t.BenchmarkReturns)
	if err := s.db.GetContext(ctx, &rec, q, benchmarkID, asOf); err != nil {
		return nil, s.readErr("get_benchmark_return", err)
	}
	rec.AsOfDate = util.DateOnly(rec.AsOfDate)
	return &rec, nil
}

func (s *PGStore) GetPortfolio(ctx context.Context, asOf time.Time) (*models.PortfolioRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE as_of_date = $1`, columnList(portfolioColumns), s.t.Portfolio)
	return s.portfolio(ctx, "get_portfolio", q, asOf)
}

func (s *PGStore) LatestPortfolio(ctx context.Context) (*models.PortfolioRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY as_of_date DESC LIMIT 1`, columnList(portfolioColumns), s.t.Portfolio)
	return s.portfolio(ctx, "latest_portfolio", q)
}

func (s *PGStore) portfolio(ctx context.Context, op, q string, args ...any) (*models.PortfolioRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec models.PortfolioRecord
	if err := s.db.QueryRowxContext(ctx, q, args...).Scan(portfolioDest(&rec)...); err != nil {
		return nil, s.readErr(op, err)
	}
	rec.AsOfDate = util.DateOnly(rec.AsOfDate)
	return &rec, nil
}

func (s *PGStore) Triage(ctx context.Context, f models.TriageFilter) ([]models.TriageRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`
		WITH latest AS (SELECT MAX(as_of_date) AS d FROM %[1]s),
		pos AS (
			SELECT security_id, weight FROM %[3]s
			WHERE as_of_date = (SELECT MAX(as_of_date) FROM %[3]s)
		)
		SELECT m.id AS security_id, m.ticker, l.d AS as_of_date, COALESCE(p.weight, 0) AS weight,
			%[4]s, r.vol_spike_ratio, r.drawdown_52w, r.what_changed_score
		FROM %[2]s m
		CROSS JOIN latest l
		LEFT JOIN pos p ON p.security_id = m.id
		LEFT JOIN %[1]s r ON r.security_id = m.id AND r.as_of_date = l.d
		WHERE l.d IS NOT NULL AND COALESCE(p.weight, 0) >= $1
		ORDER BY %[5]s NULLS LAST, m.ticker
		LIMIT $2`,
		s.t.Returns, s.t.SecurityMaster, s.t.Positions, qualified("r", returnColumns()), triageOrderSQL(f.SortBy))

	var out []models.TriageRow
	if err := s.db.SelectContext(ctx, &out, q, f.MinWeight, triageLimit(f.Limit)); err != nil {
		s.logErr("triage", err)
		return nil, fmt.Errorf("triage: %w", err)
	}
	for i := range out {
		out[i].AsOfDate = util.DateOnly(out[i].AsOfDate)
	}
	return out, nil
}

func triageOrderSQL(sortBy string) string {
	switch sortBy {
	case models.TriageSortDrawdown:
		return "ABS(r.drawdown_52w) DESC"
	case models.TriageSortVolSpike:
		return "r.vol_spike_ratio DESC"
	default:
		return "r.what_changed_score DESC"
	}
}

func (s *PGStore) readErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domrepo.ErrNotFound
	}
	s.logErr(op, err)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PGStore) logErr(op string, err error, fields ...applogger.Field) {
	if s.l == nil {
		return
	}
	s.l.Error("postgres "+op+" error", append(fields, applogger.Error(err))...)
}

var _ domrepo.Store = (*PGStore)(nil)
