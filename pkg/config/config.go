package config

import (
	"fmt"
	"os"
	"time"

	"EquityPulse/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Log         LogConfig        `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
	Backend     BackendConfig    `yaml:"backend"`
	Postgres    PostgresConfig   `yaml:"postgres"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Engine      EngineConfig     `yaml:"engine"`
	Benchmarks  BenchmarksConfig `yaml:"benchmarks"`
	Scheduler   SchedulerConfig  `yaml:"scheduler"`
	Cache       CacheConfig      `yaml:"cache"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
	// Digest publishes aggregated error lines to Kafka when Topic is set.
	Digest struct {
		Topic          string        `yaml:"topic"`
		Interval       time.Duration `yaml:"interval" default:"1m"`
		CountThreshold int           `yaml:"count_threshold" default:"100"`
	} `yaml:"digest"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type BackendConfig struct {
	Type         string        `yaml:"type" default:"postgres" validate:"oneof=postgres clickhouse"`
	QueryTimeout time.Duration `yaml:"query_timeout" default:"30s"`
	InitSchema   bool          `yaml:"init_schema" default:"true"`
	Tables       TablesConfig  `yaml:"tables"`
}

// TablesConfig names the input and feature tables ("schema.table").
type TablesConfig struct {
	Prices           string `yaml:"prices" default:"core.core_prices_daily"`
	BenchmarkPrices  string `yaml:"benchmark_prices" default:"core.core_benchmark_prices_daily"`
	SecurityMaster   string `yaml:"security_master" default:"core.core_security_master"`
	Benchmarks       string `yaml:"benchmarks" default:"core.core_benchmarks"`
	Positions        string `yaml:"positions" default:"core.core_positions"`
	Returns          string `yaml:"returns" default:"feat.feat_returns"`
	BenchmarkReturns string `yaml:"benchmark_returns" default:"feat.feat_benchmark_returns"`
	Portfolio        string `yaml:"portfolio" default:"feat.feat_portfolio"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
}

type ClickHouseConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" default:"9000"`
	Database     string        `yaml:"database" default:"default"`
	User         string        `yaml:"user" default:"default"`
	Password     string        `yaml:"password"`
	UseHTTP      bool          `yaml:"use_http"`
	AsyncInsert  bool          `yaml:"async_insert"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"equitypulse"`
	PoolSize int    `yaml:"pool_size" default:"10" validate:"gte=1"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Topics       struct {
		PricesLoaded     string `yaml:"prices_loaded" default:"prices.loaded"`
		FeaturesComputed string `yaml:"features_computed" default:"features.computed"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"100ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"equitypulse-engine"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
	} `yaml:"consumer"`
}

type EngineConfig struct {
	LookbackDays int           `yaml:"lookback_days" default:"400" validate:"gte=1"`
	Workers      int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	LockTTL      time.Duration `yaml:"lock_ttl" default:"30m"`
	RunTimeout   time.Duration `yaml:"run_timeout" default:"20m"`
}

// BenchmarksConfig maps alpha roles to benchmark tickers.
type BenchmarksConfig struct {
	Market   string `yaml:"market" default:"SPY"`
	Growth   string `yaml:"growth" default:"QQQ"`
	RiskFree string `yaml:"risk_free" default:"TB3M"`
}

// Roles returns role name -> ticker for configured roles.
func (b BenchmarksConfig) Roles() map[string]string {
	out := make(map[string]string, 3)
	for role, ticker := range map[string]string{"market": b.Market, "growth": b.Growth, "risk_free": b.RiskFree} {
		if ticker != "" {
			out[role] = ticker
		}
	}
	return out
}

type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled" default:"true"`
	Spec     string `yaml:"spec" default:"0 30 22 * * 1-5"`
	Timezone string `yaml:"timezone" default:"UTC"`
}

type CacheConfig struct {
	TTL              time.Duration `yaml:"ttl" default:"5m"`
	MemoryMaxEntries int           `yaml:"memory_max_entries" default:"1000" validate:"gte=1"`
	MemorySweep      time.Duration `yaml:"memory_sweep" default:"1m"`
}

type RateLimitConfig struct {
	ComputeBurst  float64 `yaml:"compute_burst" default:"2"`
	ComputeRefill float64 `yaml:"compute_refill_per_sec" default:"0.05"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(err)
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables
// and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("PG_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := util.SplitList(getenv("KAFKA_BROKERS")); len(v) > 0 {
		c.Kafka.Brokers = v
		c.Kafka.Enabled = true
	}
	if v := getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks field rules and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	switch c.Backend.Type {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for backend postgres")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for backend clickhouse")
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler.spec is required when the scheduler is enabled")
	}
	return nil
}
