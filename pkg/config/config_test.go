package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "postgres", c.Backend.Type)
	assert.Equal(t, 400, c.Engine.LookbackDays)
	assert.Equal(t, 4, c.Engine.Workers)
	assert.Equal(t, 30*time.Minute, c.Engine.LockTTL)
	assert.Equal(t, "0 30 22 * * 1-5", c.Scheduler.Spec)
	assert.Equal(t, "core.core_prices_daily", c.Backend.Tables.Prices)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, map[string]string{"market": "SPY", "growth": "QQQ", "risk_free": "TB3M"}, c.Benchmarks.Roles())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
environment: test
backend:
  type: clickhouse
clickhouse:
  host: ch.local
engine:
  workers: 8
benchmarks:
  growth: ""
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", c.Backend.Type)
	assert.Equal(t, 8, c.Engine.Workers)
	assert.Equal(t, 400, c.Engine.LookbackDays)
	assert.NotContains(t, c.Benchmarks.Roles(), "growth")
	assert.NoError(t, c.Validate())
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{
		"PG_DSN":        "postgres://u:p@db/eq?sslmode=disable",
		"KAFKA_BROKERS": "k1:9092,k2:9092",
		"SERVER_PORT":   "9090",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, env["PG_DSN"], c.Postgres.DSN)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 9090, c.Server.Port)
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	c := Default()
	assert.Error(t, c.Validate(), "postgres without dsn")

	c.Postgres.DSN = "postgres://localhost/eq"
	c.Backend.Type = "mysql"
	assert.Error(t, c.Validate())

	c.Backend.Type = "postgres"
	c.Engine.Workers = 0
	assert.Error(t, c.Validate())
}
