package di

import (
	"context"
	"fmt"
	"time"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	domsvc "EquityPulse/internal/domain/service"
	"EquityPulse/internal/handler/api"
	internalrepo "EquityPulse/internal/repository"
	"EquityPulse/internal/scheduler"
	"EquityPulse/internal/service/ratelimit"
	"EquityPulse/internal/services/features"
	"EquityPulse/internal/usecase"
	"EquityPulse/pkg/cache"
	pkgch "EquityPulse/pkg/clickhouse"
	"EquityPulse/pkg/config"
	xhttp "EquityPulse/pkg/http"
	pkgkafka "EquityPulse/pkg/kafka"
	applogger "EquityPulse/pkg/logger"
	"EquityPulse/pkg/metrics"
	pkgpg "EquityPulse/pkg/postgres"
	"EquityPulse/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideTables maps configured table names onto the repository layout.
func ProvideTables(cfg *config.Config) domrepo.Tables {
	t := cfg.Backend.Tables
	return domrepo.Tables{
		Prices:           t.Prices,
		BenchmarkPrices:  t.BenchmarkPrices,
		SecurityMaster:   t.SecurityMaster,
		Benchmarks:       t.Benchmarks,
		Positions:        t.Positions,
		Returns:          t.Returns,
		BenchmarkReturns: t.BenchmarkReturns,
		Portfolio:        t.Portfolio,
	}
}

// ProvideStore opens the configured backend and creates the feature tables.
func ProvideStore(cfg *config.Config, tables domrepo.Tables, l *applogger.Logger) (domrepo.Store, error) {
	var store domrepo.Store
	switch cfg.Backend.Type {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
			pkgch.WithMaxExecutionTime(cfg.Backend.QueryTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		s := internalrepo.NewCHFeatureStore(client, tables)
		s.SetLogger(l)
		store = s
	default:
		client, err := pkgpg.NewClient(
			pkgpg.WithDSN(cfg.Postgres.DSN),
			pkgpg.WithMaxConnections(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns),
			pkgpg.WithConnLifetime(cfg.Postgres.ConnMaxLifetime, 0),
		)
		if err != nil {
			return nil, fmt.Errorf("postgres client: %w", err)
		}
		s := internalrepo.NewPGStore(client, tables, cfg.Backend.QueryTimeout)
		s.SetLogger(l)
		store = s
	}

	if cfg.Backend.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%s schema: %w", cfg.Backend.Type, err)
		}
	}
	l.Info("feature store ready", applogger.String("backend", cfg.Backend.Type))
	return store, nil
}

// ProvideCache returns Redis when enabled, else a process-local cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		l.Info("redis disabled, using in-memory cache and run lock")
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxEntries),
			cache.WithMemoryCleanup(cfg.Cache.MemorySweep),
		), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, 0, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRunPublisher announces runs on Kafka when a producer exists.
func ProvideRunPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.RunPublisher {
	if producer == nil {
		return internalrepo.NoopRunPublisher{}
	}
	return internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.Topics.FeaturesComputed)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideCalculator() domsvc.FeatureCalculator {
	return features.NewCalculator()
}

// ProvideFeatureEngine creates the run orchestrator.
func ProvideFeatureEngine(
	store domrepo.Store,
	calc domsvc.FeatureCalculator,
	pub domrepo.RunPublisher,
	c cache.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.FeatureEngine {
	roles := make(map[models.BenchmarkRole]string)
	for role, ticker := range cfg.Benchmarks.Roles() {
		roles[models.BenchmarkRole(role)] = ticker
	}
	return usecase.NewFeatureEngine(store, calc, pub, c, m, l, usecase.EngineConfig{
		LookbackDays: cfg.Engine.LookbackDays,
		Workers:      cfg.Engine.Workers,
		LockTTL:      cfg.Engine.LockTTL,
		Roles:        roles,
	})
}

// ProvideFeatureRunner exposes the engine to transports.
func ProvideFeatureRunner(e *usecase.FeatureEngine) usecase.FeatureRunner {
	return e
}

func ProvideFeatureQuery(store domrepo.Store, c cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.FeatureQuery {
	return usecase.NewFeatureQuery(store, c, cfg.Cache.TTL, l)
}

func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideFeaturesHandler creates the HTTP handler.
func ProvideFeaturesHandler(
	l *applogger.Logger,
	q *usecase.FeatureQuery,
	runner usecase.FeatureRunner,
	store domrepo.Store,
	limiter *ratelimit.Limiter,
	cfg *config.Config,
) *api.FeaturesEchoHandler {
	return api.NewFeaturesEchoHandler(l, q, runner, store, limiter, api.ComputeLimit{
		Burst:      cfg.RateLimit.ComputeBurst,
		RefillRate: cfg.RateLimit.ComputeRefill,
		RunTimeout: cfg.Engine.RunTimeout,
	})
}

// ProvideHTTPServer creates the Echo server with every handler registered.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.FeaturesEchoHandler) *xhttp.Server {
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
	)
}

type hookStartKey struct{}

// ProvideKafkaConsumer creates the prices-loaded consumer, or nil when Kafka
// is disabled. Handler latency and failures are recorded as metrics.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return context.WithValue(ctx, hookStartKey{}, time.Now()), km, data, nil
		},
		After: func(ctx context.Context, topic string, _ kafka.Message, _ []byte, err error) {
			if start, ok := ctx.Value(hookStartKey{}).(time.Time); ok && err == nil {
				m.RecordLatency("kafka_"+topic, time.Since(start).Seconds())
			}
		},
		Err: func(_ context.Context, topic string, _ kafka.Message, _ []byte, _ error) {
			m.RecordError("kafka_" + topic)
		},
	})
	return consumer, nil
}

func ProvidePricesLoadedHandler(cfg *config.Config, runner usecase.FeatureRunner, l *applogger.Logger) *usecase.PricesLoadedHandler {
	return usecase.NewPricesLoadedHandler(cfg.Kafka.Topics.PricesLoaded, runner, l)
}

// ProvideScheduler creates the cron runner, or nil when disabled.
func ProvideScheduler(cfg *config.Config, runner usecase.FeatureRunner, l *applogger.Logger) (*scheduler.Runner, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	r, err := scheduler.New(runner, cfg.Scheduler.Timezone, cfg.Engine.RunTimeout, l)
	if err != nil {
		return nil, err
	}
	if err := r.Schedule(cfg.Scheduler.Spec); err != nil {
		return nil, err
	}
	return r, nil
}

// ProvideApp creates the application server. When Kafka and a digest topic
// are configured, aggregated error logs are shipped through the producer.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.Store,
	c cache.Service,
	pub domrepo.RunPublisher,
	producer *pkgkafka.Producer,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.PricesLoadedHandler,
	sched *scheduler.Runner,
) *server.App {
	if producer != nil && cfg.Log.Digest.Topic != "" {
		l.AddCollector(&applogger.DigestConfig{
			TimeInterval:   cfg.Log.Digest.Interval,
			CountThreshold: cfg.Log.Digest.CountThreshold,
			Topic:          cfg.Log.Digest.Topic,
			Publisher:      producer,
		})
	}
	return server.New(cfg, l, store, c, pub, httpServer, consumer, kh, sched)
}

// Tools bundles what the one-shot CLI commands need.
type Tools struct {
	Engine *usecase.FeatureEngine
	Query  *usecase.FeatureQuery
	Logger *applogger.Logger

	store domrepo.Store
	cache cache.Service
	pub   domrepo.RunPublisher
}

// Close releases every client held by t.
func (t *Tools) Close() error {
	_ = t.pub.Close()
	_ = t.cache.Close()
	return t.store.Close()
}

func ProvideTools(
	e *usecase.FeatureEngine,
	q *usecase.FeatureQuery,
	l *applogger.Logger,
	store domrepo.Store,
	c cache.Service,
	pub domrepo.RunPublisher,
) *Tools {
	return &Tools{Engine: e, Query: q, Logger: l, store: store, cache: c, pub: pub}
}
