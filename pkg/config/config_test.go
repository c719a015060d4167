package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("backend:\n  type: memory\n"))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 30*time.Second, c.Server.WriteTimeout)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 9000, c.ClickHouse.Port)
	assert.True(t, c.ClickHouse.UseFinal())
	assert.True(t, c.Metrics.On())
	assert.Equal(t, 5*time.Minute, c.Cache.TTL)
	assert.Equal(t, 6379, c.Cache.Redis.Port)
	assert.Equal(t, TableBinding{Table: "trade_calendar", Column: "is_open"}, c.Calendar)
	assert.Equal(t, TableBinding{Table: "stock_listing", Column: "listed"}, c.Listing)
	assert.Equal(t, "ashare.rows", c.Kafka.Topic)
	assert.Equal(t, "ashare.rows.dlq", c.Kafka.Consumer.DLQTopic)
	assert.Equal(t, 4, c.Kafka.Consumer.Workers)
}

func TestParseFactorBindings(t *testing.T) {
	c, err := Parse([]byte(`
backend:
  type: memory
factors:
  - name: open
    kind: continuous
    table: stock_daily
    column: open
  - name: suspended
    kind: on_the_record
    type: bool
    table: suspensions
`))
	require.NoError(t, err)
	require.Len(t, c.Factors, 2)
	assert.Equal(t, "float", c.Factors[0].Type)
	assert.Empty(t, c.Factors[1].Column)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown backend":         "backend:\n  type: mysql\n",
		"clickhouse without host": "backend:\n  type: clickhouse\n",
		"postgres without host":   "backend:\n  type: postgres\n",
		"bad log level":           "backend:\n  type: memory\nlog:\n  level: loud\n",
		"factor without column":   "backend:\n  type: memory\nfactors:\n  - name: x\n    kind: compact\n    table: t\n",
		"factor bad kind":         "backend:\n  type: memory\nfactors:\n  - name: x\n    kind: dense\n    table: t\n    column: c\n",
		"inverted backoff":        "backend:\n  type: memory\nkafka:\n  consumer:\n    backoff_min: 10s\n    backoff_max: 1s\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  type: memory\n"), 0o600))

	t.Setenv("BACKEND", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Backend.Type)
	assert.Equal(t, "db.internal", c.Postgres.Host)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
}

func TestLoadSampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", c.Backend.Type)
	assert.Equal(t, "localhost", c.ClickHouse.Host)
	require.Len(t, c.Factors, 1)
}

func TestExplicitFalseSurvivesDefaults(t *testing.T) {
	c, err := Parse([]byte("backend:\n  type: memory\nclickhouse:\n  final: false\nmetrics:\n  enabled: false\n"))
	require.NoError(t, err)
	assert.False(t, c.ClickHouse.UseFinal())
	assert.False(t, c.Metrics.On())
}
