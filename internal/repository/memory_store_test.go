package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
)

func seedDaily(t *testing.T, s domrepo.Store) {
	t.Helper()
	require.NoError(t, s.Upsert(context.Background(), "stock_daily", []models.RawRow{
		{Date: day("2021-01-05"), ID: "B", Values: map[string]any{"close": 20.0, "open": 19.0}},
		{Date: day("2021-01-04"), ID: "A", Values: map[string]any{"close": 10.0, "open": 9.0}},
		{Date: day("2021-01-05"), ID: "A", Values: map[string]any{"close": 11.0, "open": 10.0}},
	}))
}

func TestMemoryStoreReadOrdersAndFilters(t *testing.T) {
	s := NewMemoryStore()
	seedDaily(t, s)
	ctx := context.Background()

	rows, err := s.Read(ctx, "stock_daily", domrepo.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.Key{Date: day("2021-01-04"), ID: "A"}, rows[0].Key())
	assert.Equal(t, models.Key{Date: day("2021-01-05"), ID: "A"}, rows[1].Key())
	assert.Equal(t, models.Key{Date: day("2021-01-05"), ID: "B"}, rows[2].Key())

	rows, err = s.Read(ctx, "stock_daily", domrepo.Query{
		Dates:   []time.Time{day("2021-01-05")},
		IDs:     []string{"B"},
		Columns: []string{"close"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"close": 20.0}, rows[0].Values)

	rows, err = s.Read(ctx, "stock_daily", domrepo.Query{End: day("2021-01-04")})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = s.Read(ctx, "missing", domrepo.Query{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryStoreUpsertIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	seedDaily(t, s)
	seedDaily(t, s)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "stock_daily", []models.RawRow{
		{Date: day("2021-01-04"), ID: "A", Values: map[string]any{"close": 10.2}},
	}))

	rows, err := s.Read(ctx, "stock_daily", domrepo.Query{IDs: []string{"A"}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 10.2, rows[0].Values["close"])
	assert.Equal(t, 9.0, rows[0].Values["open"])
}

func TestMemoryStoreHonoursContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Read(ctx, "stock_daily", domrepo.Query{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Upsert(ctx, "stock_daily", nil), context.Canceled)
}
