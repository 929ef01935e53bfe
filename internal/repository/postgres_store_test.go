package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	pkgpg "EquityPulse/pkg/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPGMock(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(pkgpg.NewFromDB(sqlx.NewDb(db, "postgres")), domrepo.DefaultTables(), time.Second), mock
}

func fp(v float64) *float64 { return &v }

var refDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func TestPGStoreLatestTradeDate(t *testing.T) {
	s, mock := newPGMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(trade_date) FROM core.core_prices_daily WHERE trade_date <= $1")).
		WithArgs(refDate).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)))

	d, ok, err := s.LatestTradeDate(context.Background(), refDate)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-14", d.Format("2006-01-02"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreLatestTradeDateEmpty(t *testing.T) {
	s, mock := newPGMock(t)
	mock.ExpectQuery("SELECT MAX\\(trade_date\\)").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	_, ok, err := s.LatestTradeDate(context.Background(), refDate)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPGStoreSecuritySeriesBounds(t *testing.T) {
	s, mock := newPGMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT trade_date, close FROM core.core_prices_daily")).
		WithArgs(int64(7), refDate, refDate.AddDate(0, 0, -400), 401).
		WillReturnRows(sqlmock.NewRows([]string{"trade_date", "close"}).
			AddRow(refDate, 101.5).
			AddRow(refDate.AddDate(0, 0, -1), 100.0))

	series, err := s.SecuritySeries(context.Background(), 7, refDate, 400)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 101.5, series[0].Close)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreLatestWeights(t *testing.T) {
	s, mock := newPGMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(as_of_date) FROM core.core_positions")).
		WillReturnRows(sqlmock.NewRows([]string{"security_id", "as_of_date", "weight"}).
			AddRow(int64(1), refDate, 0.6).
			AddRow(int64(2), refDate, 0.4))

	w, err := s.LatestWeights(context.Background())
	require.NoError(t, err)
	require.Len(t, w, 2)
	assert.Equal(t, 0.4, w[1].Weight)
}

func TestPGStoreUpsertReturnRoundsAndBindsNull(t *testing.T) {
	s, mock := newPGMock(t)
	rec := &models.ReturnRecord{
		SecurityID: 1,
		AsOfDate:   refDate,
		Returns:    models.Returns{Return24h: fp(0.1234567)},
		RiskSignals: models.RiskSignals{
			Drawdown52w: fp(-0.05),
		},
		WhatChangedScore: fp(0.5),
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO feat.feat_returns")).
		WithArgs(int64(1), refDate,
			"0.123457", nil, nil, nil, nil,
			nil, nil, nil, "-0.05", "0.5").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertReturn(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreUpsertPortfolioConflictKey(t *testing.T) {
	s, mock := newPGMock(t)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (as_of_date) DO UPDATE SET return_24h = EXCLUDED.return_24h")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertPortfolio(context.Background(), &models.PortfolioRecord{AsOfDate: refDate}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreGetReturnNotFound(t *testing.T) {
	s, mock := newPGMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM feat.feat_returns WHERE security_id = $1 AND as_of_date = $2")).
		WithArgs(int64(9), refDate).
		WillReturnRows(sqlmock.NewRows(returnRecordColumns))

	_, err := s.GetReturn(context.Background(), 9, refDate)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestPGStoreGetPortfolio(t *testing.T) {
	s, mock := newPGMock(t)
	values := make([]driver.Value, len(portfolioColumns))
	values[0] = refDate
	values[2] = 0.03 // return_7d
	values[7] = 0.01 // alpha_vs_market_7d
	mock.ExpectQuery(regexp.QuoteMeta("FROM feat.feat_portfolio WHERE as_of_date = $1")).
		WithArgs(refDate).
		WillReturnRows(sqlmock.NewRows(portfolioColumns).AddRow(values...))

	rec, err := s.GetPortfolio(context.Background(), refDate)
	require.NoError(t, err)
	require.NotNil(t, rec.Return7d)
	assert.InDelta(t, 0.03, *rec.Return7d, 1e-12)
	assert.Nil(t, rec.Return24h)
	require.NotNil(t, rec.Alpha.Market.Return7d)
	assert.InDelta(t, 0.01, *rec.Alpha.Market.Return7d, 1e-12)
	assert.Nil(t, rec.Alpha.Growth.Return7d)
}

func TestPGStoreTriageQuery(t *testing.T) {
	s, mock := newPGMock(t)
	cols := concat([]string{"security_id", "ticker", "as_of_date", "weight"}, returnColumns(),
		[]string{"vol_spike_ratio", "drawdown_52w", "what_changed_score"})
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY ABS(r.drawdown_52w) DESC NULLS LAST, m.ticker")).
		WithArgs(0.05, 200).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), "AAA", refDate, 0.5, nil, 0.02, nil, nil, nil, 1.4, -0.2, 0.9))

	rows, err := s.Triage(context.Background(), models.TriageFilter{SortBy: models.TriageSortDrawdown, MinWeight: 0.05})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAA", rows[0].Ticker)
	require.NotNil(t, rows[0].Drawdown52w)
	assert.InDelta(t, -0.2, *rows[0].Drawdown52w, 1e-12)
	assert.Nil(t, rows[0].Return24h)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreInitRunsSchema(t *testing.T) {
	s, mock := newPGMock(t)
	stmts := PostgresSchema(domrepo.DefaultTables())
	for _, stmt := range stmts {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, s.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
