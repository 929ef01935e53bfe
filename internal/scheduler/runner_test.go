package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"EquityPulse/internal/domain/models"
	"EquityPulse/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	dates []time.Time
	err   error
}

func (s *stubRunner) Run(ctx context.Context, asOf time.Time) (*models.RunReport, error) {
	s.dates = append(s.dates, asOf)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("missing deadline")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &models.RunReport{AsOfDate: asOf}, nil
}

func TestTickUsesSchedulerTimezone(t *testing.T) {
	stub := &stubRunner{}
	r, err := New(stub, "America/New_York", time.Minute, nil)
	require.NoError(t, err)
	// 02:00 UTC on the 16th is still the 15th in New York.
	r.now = func() time.Time { return time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC) }

	r.tick()
	require.Len(t, stub.dates, 1)
	y, m, d := stub.dates[0].Date()
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.March, m)
	assert.Equal(t, 15, d)
}

func TestTickSwallowsRunErrors(t *testing.T) {
	for _, runErr := range []error{usecase.ErrRunInProgress, errors.New("db down")} {
		stub := &stubRunner{err: runErr}
		r, err := New(stub, "", time.Minute, nil)
		require.NoError(t, err)
		assert.NotPanics(t, r.tick)
		assert.Len(t, stub.dates, 1)
	}
}

func TestScheduleValidatesSpec(t *testing.T) {
	r, err := New(&stubRunner{}, "UTC", 0, nil)
	require.NoError(t, err)

	assert.NoError(t, r.Schedule("0 30 22 * * 1-5"))
	assert.Error(t, r.Schedule("30 22 * * 1-5"))
	assert.Len(t, r.cron.Entries(), 1)
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New(&stubRunner{}, "Mars/Olympus", time.Minute, nil)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	r, err := New(&stubRunner{}, "UTC", time.Minute, nil)
	require.NoError(t, err)
	require.NoError(t, r.Schedule("@every 1h"))
	r.Start(context.Background())
	r.Stop()
}
