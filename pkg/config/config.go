package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string         `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig   `yaml:"server"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	Log         LogConfig      `yaml:"log"`
	Backend     BackendConfig  `yaml:"backend"`
	ClickHouse  ClickHouse     `yaml:"clickhouse"`
	Postgres    Postgres       `yaml:"postgres"`
	Cache       CacheConfig    `yaml:"cache"`
	Calendar    TableBinding   `yaml:"calendar"`
	Listing     TableBinding   `yaml:"listing"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	Factors     []FactorConfig `yaml:"factors" validate:"dive"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
	CORS            bool          `yaml:"cors"`
	RateLimit       struct {
		// PerSecond is the per-client refill rate. Zero disables limiting.
		PerSecond float64 `yaml:"per_second" validate:"gte=0"`
		Burst     float64 `yaml:"burst" default:"20" validate:"gte=0"`
	} `yaml:"rate_limit"`
}

type MetricsConfig struct {
	Enabled *bool `yaml:"enabled" default:"true"`
}

// On reports whether the /metrics endpoint and recorders are enabled.
func (m MetricsConfig) On() bool { return m.Enabled != nil && *m.Enabled }

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type BackendConfig struct {
	Type string `yaml:"type" default:"clickhouse" validate:"oneof=clickhouse postgres memory"`
}

type ClickHouse struct {
	Host             string        `yaml:"host" validate:"required_if=Enabled true"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"ashare"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	Final            *bool         `yaml:"final" default:"true"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	// Schema holds idempotent DDL run once at startup.
	Schema  []string `yaml:"schema"`
	Enabled bool     `yaml:"-"`
}

// UseFinal reports whether reads add the FINAL modifier.
func (c ClickHouse) UseFinal() bool { return c.Final != nil && *c.Final }

type Postgres struct {
	Host     string `yaml:"host" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"ashare"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"prefer"`
	MaxConns int    `yaml:"max_conns" default:"10"`
	MinConns int    `yaml:"min_conns" default:"2"`
	Enabled  bool   `yaml:"-"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl" default:"5m"`
	// L1TTL bounds the in-process layer in front of Redis. Zero disables it.
	L1TTL   time.Duration `yaml:"l1_ttl" default:"30s"`
	MaxSize int           `yaml:"max_size" default:"1000"`
	Redis   struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"ashare"`
	} `yaml:"redis"`
}

// TableBinding names a table and a flag column in it.
type TableBinding struct {
	Table  string `yaml:"table" validate:"required"`
	Column string `yaml:"column"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic" default:"ashare.rows"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"ashare-ingest"`
		Workers    int           `yaml:"workers" default:"4" validate:"gt=0"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

// FactorConfig adds or overrides a catalog entry.
type FactorConfig struct {
	Name   string `yaml:"name" validate:"required"`
	Kind   string `yaml:"kind" validate:"oneof=compact continuous on_the_record"`
	Type   string `yaml:"type" default:"float" validate:"oneof=float string bool"`
	Table  string `yaml:"table" validate:"required"`
	Column string `yaml:"column" validate:"required_unless=Kind on_the_record"`
}

// SetDefaults fills list defaults creasty/defaults cannot express.
func (c *Config) SetDefaults() {
	if defaults.CanUpdate(c.Calendar.Table) {
		c.Calendar = TableBinding{Table: "trade_calendar", Column: "is_open"}
	}
	if defaults.CanUpdate(c.Listing.Table) {
		c.Listing = TableBinding{Table: "stock_listing", Column: "listed"}
	}
	if c.Kafka.Consumer.DLQTopic == "" && c.Kafka.Topic != "" {
		c.Kafka.Consumer.DLQTopic = c.Kafka.Topic + ".dlq"
	}
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyEnv(os.Getenv)
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) finish() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	c.ClickHouse.Enabled = c.Backend.Type == "clickhouse"
	c.Postgres.Enabled = c.Backend.Type == "postgres"
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("APP_ENV", &c.Environment)
	str("LOG_LEVEL", &c.Log.Level)
	str("BACKEND", &c.Backend.Type)
	num("SERVER_PORT", &c.Server.Port)

	str("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	num("CLICKHOUSE_PORT", &c.ClickHouse.Port)
	str("CLICKHOUSE_DATABASE", &c.ClickHouse.Database)
	str("CLICKHOUSE_USER", &c.ClickHouse.User)
	str("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)

	str("POSTGRES_HOST", &c.Postgres.Host)
	num("POSTGRES_PORT", &c.Postgres.Port)
	str("POSTGRES_DATABASE", &c.Postgres.Database)
	str("POSTGRES_USER", &c.Postgres.User)
	str("POSTGRES_PASSWORD", &c.Postgres.Password)

	str("REDIS_HOST", &c.Cache.Redis.Host)
	str("REDIS_PASSWORD", &c.Cache.Redis.Password)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Consumer.BackoffMin > c.Kafka.Consumer.BackoffMax {
		return fmt.Errorf("kafka.consumer.backoff_min (%s) exceeds backoff_max (%s)",
			c.Kafka.Consumer.BackoffMin, c.Kafka.Consumer.BackoffMax)
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		return fmt.Errorf("postgres.min_conns (%d) exceeds max_conns (%d)", c.Postgres.MinConns, c.Postgres.MaxConns)
	}
	return nil
}
