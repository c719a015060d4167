package tickers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AShareData/internal/domain/models"
	"AShareData/internal/repository"
	"AShareData/internal/services/calendar"
)

func d(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestUniverse(t *testing.T) {
	ctx := context.Background()
	cal, err := calendar.New([]time.Time{d("2021-01-04"), d("2021-01-05"), d("2021-01-06")})
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, "stock_listing", []models.RawRow{
		{Date: d("2020-06-01"), ID: "600000.SH", Values: map[string]any{"listed": true}},
		{Date: d("2020-06-01"), ID: "000001.SZ", Values: map[string]any{"listed": true}},
		{Date: d("2021-01-05"), ID: "000001.SZ", Values: map[string]any{"listed": false}},
		{Date: d("2021-01-06"), ID: "688001.SH", Values: map[string]any{"listed": int64(1)}},
	}))

	u, err := New(store, cal, "stock_listing", "listed")
	require.NoError(t, err)

	all, err := u.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ", "600000.SH", "688001.SH"}, all)

	listed, err := u.Listed(ctx, d("2021-01-04"))
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ", "600000.SH"}, listed)

	listed, err = u.Listed(ctx, d("2021-01-06"))
	require.NoError(t, err)
	assert.Equal(t, []string{"600000.SH", "688001.SH"}, listed)

	_, err = u.Listed(ctx, d("2021-01-09"))
	assert.ErrorIs(t, err, models.ErrInvalidDate)
}
