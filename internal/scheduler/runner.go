package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EquityPulse/internal/usecase"
	applogger "EquityPulse/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Runner triggers the daily feature run on a cron schedule. Specs carry a
// seconds field, e.g. "0 30 22 * * 1-5".
type Runner struct {
	cron    *cron.Cron
	runner  usecase.FeatureRunner
	loc     *time.Location
	timeout time.Duration
	baseCtx context.Context
	now     func() time.Time
	l       *applogger.Logger
}

func New(runner usecase.FeatureRunner, timezone string, timeout time.Duration, l *applogger.Logger) (*Runner, error) {
	if l == nil {
		l = applogger.NewNop()
	}
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", timezone, err)
	}
	logAdapter := cronLogger{l: l}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(logAdapter),
			cron.WithChain(cron.Recover(logAdapter), cron.SkipIfStillRunning(logAdapter)),
		),
		runner:  runner,
		loc:     loc,
		timeout: timeout,
		baseCtx: context.Background(),
		now:     time.Now,
		l:       l,
	}, nil
}

// Schedule registers the daily run under spec.
func (r *Runner) Schedule(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return fmt.Errorf("scheduler spec %q: %w", spec, err)
	}
	r.l.Info("feature run scheduled", applogger.String("spec", spec), applogger.String("tz", r.loc.String()))
	return nil
}

// Start begins firing jobs. Runs derive their context from ctx.
func (r *Runner) Start(ctx context.Context) {
	if ctx != nil {
		r.baseCtx = ctx
	}
	r.l.Info("cron started")
	r.cron.Start()
}

// Stop waits for a running job to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.l.Info("cron stopped")
}

// tick runs the engine for today's date in the scheduler timezone.
func (r *Runner) tick() {
	ctx := r.baseCtx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	today := r.now().In(r.loc)

	report, err := r.runner.Run(ctx, today)
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		r.l.Info("scheduled run skipped, already in progress", applogger.String("date", today.Format("2006-01-02")))
	case err != nil:
		r.l.Error("scheduled run failed", applogger.Error(err))
	default:
		r.l.Info("scheduled run complete",
			applogger.Date("as_of", report.AsOfDate),
			applogger.Int("failures", len(report.Failures)),
		)
	}
}

// cronLogger routes cron's internal logging through the app logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, applogger.Any("kv", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, applogger.Error(err), applogger.Any("kv", keysAndValues))
}
