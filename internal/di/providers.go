package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"AShareData/internal/domain/repository"
	"AShareData/internal/handler/api"
	internalrepo "AShareData/internal/repository"
	"AShareData/internal/services/factor"
	"AShareData/internal/services/reader"
	"AShareData/internal/usecase"
	"AShareData/pkg/cache"
	pkgch "AShareData/pkg/clickhouse"
	"AShareData/pkg/config"
	xhttp "AShareData/pkg/http"
	pkgkafka "AShareData/pkg/kafka"
	applogger "AShareData/pkg/logger"
	"AShareData/pkg/metrics"
	pkgpg "AShareData/pkg/postgres"
	"AShareData/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideCache builds the read cache: Redis behind an in-process layer,
// or the in-process LRU alone. It returns nil when caching is off.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	cc := cfg.Cache
	if !cc.Enabled {
		return nil, func() {}, nil
	}

	var svc cache.Service
	if cc.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cc.Redis.Host, cc.Redis.Port),
			cache.WithRedisPassword(cc.Redis.Password),
			cache.WithRedisDB(cc.Redis.DB),
			cache.WithRedisPrefix(cc.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		svc = rc
		if cc.L1TTL > 0 {
			svc = cache.NewLayeredCache(rc, cc.L1TTL, cache.WithMemoryMaxSize(cc.MaxSize))
		}
		l.Info("cache enabled", applogger.String("kind", "redis"), applogger.String("addr", fmt.Sprintf("%s:%d", cc.Redis.Host, cc.Redis.Port)))
	} else {
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(cc.MaxSize))
		l.Info("cache enabled", applogger.String("kind", "memory"), applogger.Int("max_size", cc.MaxSize))
	}

	cleanup := func() {
		if err := svc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}
	return svc, cleanup, nil
}

// ProvideStore opens the configured backend and decorates it with
// metrics and, when enabled, the read cache.
func ProvideStore(cfg *config.Config, l *applogger.Logger, m repository.Metrics, c cache.Service) (repository.Store, func(), error) {
	var (
		base    repository.Store
		cleanup = func() {}
	)

	switch cfg.Backend.Type {
	case "clickhouse":
		client, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		s := internalrepo.NewClickHouseStore(client, cfg.ClickHouse.UseFinal())
		s.SetLogger(l)
		base = s
		cleanup = func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", applogger.Error(err))
			}
		}
		l.Info("clickhouse connected",
			applogger.String("host", cfg.ClickHouse.Host),
			applogger.String("database", client.Database()),
			applogger.Bool("final", cfg.ClickHouse.UseFinal()),
		)
	case "postgres":
		client, err := ProvidePostgresClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		s := internalrepo.NewPostgresStore(client)
		s.SetLogger(l)
		base = s
		cleanup = client.Close
		l.Info("postgres connected",
			applogger.String("host", cfg.Postgres.Host),
			applogger.String("database", cfg.Postgres.Database),
		)
	case "memory":
		base = internalrepo.NewMemoryStore()
		l.Warn("using in-memory store; data is lost on exit")
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend.Type)
	}

	var store repository.Store = internalrepo.NewInstrumentedStore(base, m)
	if c != nil {
		cs := internalrepo.NewCachedStore(store, c, cfg.Cache.TTL)
		cs.SetLogger(l)
		store = cs
	}
	return store, cleanup, nil
}

// ProvideClickHouseClient creates a ClickHouse client and applies the
// configured schema statements.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, 0),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if len(cfg.ClickHouse.Schema) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, cfg.ClickHouse.Schema); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, nil
}

// ProvidePostgresClient creates a pgx pool.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgpg.Connect(ctx,
		pkgpg.WithHost(cfg.Postgres.Host),
		pkgpg.WithPort(cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithSSLMode(cfg.Postgres.SSLMode),
		pkgpg.WithPool(cfg.Postgres.MaxConns, cfg.Postgres.MinConns),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideReader builds the factor reader with config bindings on top of
// the built-in catalog.
func ProvideReader(cfg *config.Config, store repository.Store, m repository.Metrics) (*reader.Reader, error) {
	bindings, err := Bindings(cfg.Factors)
	if err != nil {
		return nil, err
	}
	r, err := reader.New(store,
		reader.WithCalendarTable(cfg.Calendar.Table, cfg.Calendar.Column),
		reader.WithListingTable(cfg.Listing.Table, cfg.Listing.Column),
		reader.WithBindings(bindings...),
		reader.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("factor reader: %w", err)
	}
	return r, nil
}

// Bindings converts config factor entries into catalog bindings.
func Bindings(fcs []config.FactorConfig) ([]reader.Binding, error) {
	out := make([]reader.Binding, 0, len(fcs))
	for _, fc := range fcs {
		kind, err := factor.ParseKind(fc.Kind)
		if err != nil {
			return nil, fmt.Errorf("factor %s: %w", fc.Name, err)
		}
		out = append(out, reader.Binding{
			Name:   fc.Name,
			Kind:   kind,
			Type:   reader.ValueType(fc.Type),
			Table:  fc.Table,
			Column: fc.Column,
		})
	}
	return out, nil
}

// ProvideFactorsHandler creates the HTTP API handler.
func ProvideFactorsHandler(l *applogger.Logger, r *reader.Reader, store repository.Store) *api.FactorsHandler {
	return api.NewFactorsHandler(l, r, store)
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.FactorsHandler, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithAddr(cfg.Server.Host, cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithRateLimit(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond),
		xhttp.WithRegistry(reg),
	}
	if !cfg.Metrics.On() {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer(l, h, opts...)
}

// ProvideRowsHandler creates the ingestion handler. Only tables the
// reader knows about are accepted.
func ProvideRowsHandler(cfg *config.Config, store repository.Store, m repository.Metrics, l *applogger.Logger, r *reader.Reader) *usecase.RowsHandler {
	tables := []string{cfg.Calendar.Table, cfg.Listing.Table}
	for _, b := range r.Catalog() {
		tables = append(tables, b.Table)
	}
	return usecase.NewRowsHandler(cfg.Kafka.Topic, store, m, l, tables...)
}

// ProvideKafkaConsumer creates the ingestion consumer. It returns nil
// when no brokers are configured.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, rh *usecase.RowsHandler) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	kc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l, reg,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerBufferSize(kc.BufferSize),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerFetch(kc.MinBytes, kc.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.RejectEmptyHook(),
		pkgkafka.LoggingHook(l),
	))
	consumer.RegisterHandler(rh)
	return consumer, nil
}

// ProvideApp creates the application.
func ProvideApp(l *applogger.Logger, srv *xhttp.Server, consumer *pkgkafka.Consumer, r *reader.Reader, store repository.Store) *server.App {
	return server.New(l, srv, consumer, r, store)
}
