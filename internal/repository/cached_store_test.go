package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	"AShareData/pkg/cache"
)

type countingStore struct {
	*MemoryStore
	reads int
}

func (s *countingStore) Read(ctx context.Context, table string, q domrepo.Query) ([]models.RawRow, error) {
	s.reads++
	return s.MemoryStore.Read(ctx, table, q)
}

func TestCachedStoreReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	seedDaily(t, inner)

	s := NewCachedStore(inner, cache.NewMemoryCache(), 0)
	defer s.Close()

	q := domrepo.Query{IDs: []string{"A"}, Columns: []string{"close"}}
	first, err := s.Read(ctx, "stock_daily", q)
	require.NoError(t, err)
	second, err := s.Read(ctx, "stock_daily", q)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reads)
	require.Len(t, second, len(first))
	assert.Equal(t, first[0].Key(), second[0].Key())
	assert.Equal(t, first[0].Values["close"], second[0].Values["close"])

	require.NoError(t, s.Upsert(ctx, "stock_daily", []models.RawRow{
		{Date: day("2021-01-04"), ID: "A", Values: map[string]any{"close": 99.0}},
	}))
	third, err := s.Read(ctx, "stock_daily", q)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.reads)
	assert.Equal(t, 99.0, third[0].Values["close"])
}

func TestCachedStoreKeepsCellTypes(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	listed := time.Date(1991, 4, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, inner.Upsert(ctx, "sec_info", []models.RawRow{
		{Date: day("2021-01-04"), ID: "A", Values: map[string]any{
			"raw":       []byte("\x00\x01"),
			"shares":    int64(1_000_000_007),
			"close":     12.5,
			"name":      "平安银行",
			"st":        false,
			"list_date": listed,
			"note":      nil,
		}},
	}))

	s := NewCachedStore(inner, cache.NewMemoryCache(), 0)
	defer s.Close()

	first, err := s.Read(ctx, "sec_info", domrepo.Query{})
	require.NoError(t, err)
	second, err := s.Read(ctx, "sec_info", domrepo.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.reads)

	require.Len(t, second, 1)
	v := second[0].Values
	assert.Equal(t, []byte("\x00\x01"), v["raw"])
	assert.Equal(t, int64(1_000_000_007), v["shares"])
	assert.Equal(t, 12.5, v["close"])
	assert.Equal(t, "平安银行", v["name"])
	assert.Equal(t, false, v["st"])
	assert.True(t, listed.Equal(v["list_date"].(time.Time)))
	assert.Nil(t, v["note"])
	assert.True(t, first[0].Date.Equal(second[0].Date))
}

type opaque struct{ X int }

func TestCachedStoreSkipsUnencodableRows(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryStore: NewMemoryStore()}
	require.NoError(t, inner.Upsert(ctx, "odd", []models.RawRow{
		{Date: day("2021-01-04"), ID: "A", Values: map[string]any{"v": opaque{X: 1}}},
	}))

	s := NewCachedStore(inner, cache.NewMemoryCache(), 0)
	defer s.Close()

	for i := 0; i < 2; i++ {
		rows, err := s.Read(ctx, "odd", domrepo.Query{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, opaque{X: 1}, rows[0].Values["v"])
	}
	assert.Equal(t, 2, inner.reads)
}

type recordingMetrics struct {
	reads, writes, errors int
}

func (m *recordingMetrics) RecordStoreRead(string, int) { m.reads++ }
func (m *recordingMetrics) RecordStoreWrite(string, int) { m.writes++ }
func (m *recordingMetrics) RecordFactorGet(string, string) {}
func (m *recordingMetrics) RecordError(string) { m.errors++ }
func (m *recordingMetrics) RecordLatency(string, float64) {}

func TestInstrumentedStoreRecords(t *testing.T) {
	m := &recordingMetrics{}
	s := NewInstrumentedStore(NewMemoryStore(), m)

	require.NoError(t, s.Upsert(context.Background(), "t", []models.RawRow{{Date: day("2021-01-04"), ID: "A"}}))
	_, err := s.Read(context.Background(), "t", domrepo.Query{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Read(ctx, "t", domrepo.Query{})
	require.Error(t, err)

	assert.Equal(t, 1, m.writes)
	assert.Equal(t, 1, m.reads)
	assert.Equal(t, 1, m.errors)
}
