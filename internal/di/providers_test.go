package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalrepo "AShareData/internal/repository"
	"AShareData/internal/services/factor"
	"AShareData/internal/services/reader"
	"AShareData/pkg/config"
	applogger "AShareData/pkg/logger"
)

const memoryConfig = `
backend:
  type: memory
server:
  host: 127.0.0.1
  port: 18089
log:
  level: error
factors:
  - name: open
    kind: continuous
    table: stock_daily
    column: open
`

func parse(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestBindings(t *testing.T) {
	bs, err := Bindings([]config.FactorConfig{
		{Name: "open", Kind: "continuous", Type: "float", Table: "stock_daily", Column: "open"},
		{Name: "suspended", Kind: "on_the_record", Type: "bool", Table: "suspensions"},
	})
	require.NoError(t, err)
	assert.Equal(t, []reader.Binding{
		{Name: "open", Kind: factor.Continuous, Type: reader.Float, Table: "stock_daily", Column: "open"},
		{Name: "suspended", Kind: factor.OnTheRecord, Type: reader.Bool, Table: "suspensions"},
	}, bs)

	_, err = Bindings([]config.FactorConfig{{Name: "x", Kind: "dense", Table: "t"}})
	assert.Error(t, err)
}

func TestProvideCache(t *testing.T) {
	cfg := parse(t, memoryConfig)
	c, cleanup, err := ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, c)
	cleanup()

	cfg.Cache.Enabled = true
	c, cleanup, err = ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	require.NotNil(t, c)
	cleanup()
}

func TestProvideStoreDecorates(t *testing.T) {
	cfg := parse(t, memoryConfig)
	m := ProvideMetrics(ProvideRegistry())

	s, cleanup, err := ProvideStore(cfg, applogger.Nop(), m, nil)
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &internalrepo.InstrumentedStore{}, s)

	cfg.Cache.Enabled = true
	c, cacheCleanup, err := ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	defer cacheCleanup()
	s, cleanup2, err := ProvideStore(cfg, applogger.Nop(), m, c)
	require.NoError(t, err)
	defer cleanup2()
	assert.IsType(t, &internalrepo.CachedStore{}, s)
}

func TestProvideReaderIncludesConfigFactors(t *testing.T) {
	cfg := parse(t, memoryConfig)
	m := ProvideMetrics(ProvideRegistry())
	s, cleanup, err := ProvideStore(cfg, applogger.Nop(), m, nil)
	require.NoError(t, err)
	defer cleanup()

	r, err := ProvideReader(cfg, s, m)
	require.NoError(t, err)
	b, ok := r.Binding("open")
	require.True(t, ok)
	assert.Equal(t, factor.Continuous, b.Kind)

	rh := ProvideRowsHandler(cfg, s, m, applogger.Nop(), r)
	require.NoError(t, rh.Handle(context.Background(),
		[]byte(`{"table":"stock_daily","rows":[{"date":"2021-01-04","id":"X","values":{"open":1.5}}]}`)))
	require.Error(t, rh.Handle(context.Background(),
		[]byte(`{"table":"unrelated","rows":[{"date":"2021-01-04","id":"X"}]}`)))
}

func TestProvideKafkaConsumerDisabledWithoutBrokers(t *testing.T) {
	cfg := parse(t, memoryConfig)
	c, err := ProvideKafkaConsumer(cfg, applogger.Nop(), ProvideRegistry(), nil)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestInitializeAppRunsAndStops(t *testing.T) {
	cfg := parse(t, memoryConfig)
	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, app.Run(ctx))
}

func TestProvideStoreUnknownBackend(t *testing.T) {
	cfg := parse(t, memoryConfig)
	cfg.Backend.Type = "sqlite"
	_, _, err := ProvideStore(cfg, applogger.Nop(), ProvideMetrics(ProvideRegistry()), nil)
	assert.Error(t, err)
}
