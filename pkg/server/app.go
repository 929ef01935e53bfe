package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "EquityPulse/internal/domain/repository"
	"EquityPulse/internal/scheduler"
	"EquityPulse/pkg/cache"
	"EquityPulse/pkg/config"
	xhttp "EquityPulse/pkg/http"
	pkgkafka "EquityPulse/pkg/kafka"
	applogger "EquityPulse/pkg/logger"
)

// App encapsulates the service lifecycle: HTTP API, the prices-loaded
// consumer and the cron scheduler. Consumer and scheduler are optional.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	store      domrepo.Store
	cache      cache.Service
	publisher  domrepo.RunPublisher
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	scheduler  *scheduler.Runner
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.Store,
	c cache.Service,
	publisher domrepo.RunPublisher,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	sched *scheduler.Runner,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		store:      store,
		cache:      c,
		publisher:  publisher,
		httpServer: httpServer,
		consumer:   consumer,
		kh:         kh,
		scheduler:  sched,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.scheduler != nil {
		a.scheduler.Start(runCtx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		cancel()
		a.shutdown()
		return err
	}
	a.l.Info("equitypulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.Int("port", a.cfg.Server.Port),
	)

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops inbound traffic first, then closes infrastructure clients.
func (a *App) shutdown() error {
	a.l.Info("shutting down...")
	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.l.RemoveCollector()
	if err := a.publisher.Close(); err != nil {
		a.l.Warn("run publisher close error", applogger.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.l.Warn("cache close error", applogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.l.Warn("store close error", applogger.Error(err))
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
