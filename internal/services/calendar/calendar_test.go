package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AShareData/internal/domain/models"
	"AShareData/internal/repository"
)

func d(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// 2021-01-04 Mon .. 2021-01-15 Fri, weekends excluded.
func testCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := New([]time.Time{
		d("2021-01-08"), d("2021-01-04"), d("2021-01-05"), d("2021-01-06"), d("2021-01-07"),
		d("2021-01-11"), d("2021-01-12"), d("2021-01-13"), d("2021-01-14"), d("2021-01-15"),
		d("2021-01-05"),
	})
	require.NoError(t, err)
	return cal
}

func TestNewSortsAndDedupes(t *testing.T) {
	cal := testCalendar(t)
	assert.Equal(t, 10, cal.Len())
	assert.Equal(t, d("2021-01-04"), cal.First())
	assert.Equal(t, d("2021-01-15"), cal.Last())

	days := cal.Days()
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i-1].Before(days[i]))
	}

	_, err := New(nil)
	assert.Error(t, err)
}

func TestIsTradingDay(t *testing.T) {
	cal := testCalendar(t)
	assert.True(t, cal.IsTradingDay(d("2021-01-04")))
	assert.True(t, cal.IsTradingDay(time.Date(2021, 1, 4, 15, 30, 0, 0, time.UTC)))
	assert.False(t, cal.IsTradingDay(d("2021-01-09")))
	assert.False(t, cal.IsTradingDay(d("2020-12-31")))
	assert.False(t, cal.IsTradingDay(d("2022-01-04")))
}

func TestTradingDays(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		name       string
		start, end string
		want       []string
		wantErr    error
	}{
		{name: "spans weekend", start: "2021-01-07", end: "2021-01-11", want: []string{"2021-01-07", "2021-01-08", "2021-01-11"}},
		{name: "single day", start: "2021-01-06", end: "2021-01-06", want: []string{"2021-01-06"}},
		{name: "weekend only", start: "2021-01-09", end: "2021-01-10", want: []string{}},
		{name: "inverted", start: "2021-01-08", end: "2021-01-05", wantErr: models.ErrInvalidRange},
		{name: "before first", start: "2021-01-01", end: "2021-01-05", wantErr: models.ErrOutOfRange},
		{name: "after last", start: "2021-01-14", end: "2021-01-20", wantErr: models.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.TradingDays(d(tt.start), d(tt.end))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			want := make([]time.Time, len(tt.want))
			for i, s := range tt.want {
				want[i] = d(s)
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestOffset(t *testing.T) {
	cal := testCalendar(t)

	tests := []struct {
		name    string
		date    string
		n       int
		want    string
		wantErr error
	}{
		{name: "zero on trading day", date: "2021-01-06", n: 0, want: "2021-01-06"},
		{name: "forward across weekend", date: "2021-01-08", n: 1, want: "2021-01-11"},
		{name: "backward across weekend", date: "2021-01-11", n: -1, want: "2021-01-08"},
		{name: "forward several", date: "2021-01-04", n: 5, want: "2021-01-11"},
		{name: "saturday forward snaps to monday", date: "2021-01-09", n: 1, want: "2021-01-11"},
		{name: "saturday forward two", date: "2021-01-09", n: 2, want: "2021-01-12"},
		{name: "saturday backward snaps to friday", date: "2021-01-09", n: -1, want: "2021-01-08"},
		{name: "saturday backward two", date: "2021-01-09", n: -2, want: "2021-01-07"},
		{name: "saturday zero is previous", date: "2021-01-09", n: 0, want: "2021-01-08"},
		{name: "past last", date: "2021-01-14", n: 2, wantErr: models.ErrOutOfRange},
		{name: "before first", date: "2021-01-05", n: -2, wantErr: models.ErrOutOfRange},
		{name: "date outside calendar", date: "2020-12-31", n: 1, wantErr: models.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.Offset(d(tt.date), tt.n)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, d(tt.want), got)
		})
	}
}

func TestOffsetIsItsOwnInverse(t *testing.T) {
	cal := testCalendar(t)
	for _, day := range cal.Days() {
		for n := -12; n <= 12; n++ {
			there, err := cal.Offset(day, n)
			if err != nil {
				assert.ErrorIs(t, err, models.ErrOutOfRange)
				continue
			}
			back, err := cal.Offset(there, -n)
			require.NoError(t, err)
			assert.Equal(t, day, back, "offset(offset(%s, %d), %d)", models.FormatDay(day), n, -n)
		}
	}
}

func TestPreviousNext(t *testing.T) {
	cal := testCalendar(t)
	prev, err := cal.Previous(d("2021-01-11"))
	require.NoError(t, err)
	assert.Equal(t, d("2021-01-08"), prev)

	next, err := cal.Next(d("2021-01-08"))
	require.NoError(t, err)
	assert.Equal(t, d("2021-01-11"), next)
}

func TestValidate(t *testing.T) {
	cal := testCalendar(t)

	got, err := cal.Validate([]time.Time{time.Date(2021, 1, 5, 9, 30, 0, 0, time.UTC), d("2021-01-04")})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d("2021-01-05"), d("2021-01-04")}, got)

	_, err = cal.Validate([]time.Time{d("2021-01-05"), d("2021-01-10")})
	assert.ErrorIs(t, err, models.ErrInvalidDate)
	assert.Contains(t, err.Error(), "2021-01-10")
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, "trade_calendar", []models.RawRow{
		{Date: d("2021-01-04"), ID: "SSE", Values: map[string]any{"is_open": int64(1)}},
		{Date: d("2021-01-05"), ID: "SSE", Values: map[string]any{"is_open": true}},
		{Date: d("2021-01-06"), ID: "SSE", Values: map[string]any{"is_open": "1"}},
		{Date: d("2021-01-09"), ID: "SSE", Values: map[string]any{"is_open": int64(0)}},
		{Date: d("2021-01-05"), ID: "SZSE", Values: map[string]any{"is_open": 1.0}},
	}))

	cal, err := Load(ctx, store, "trade_calendar", "is_open")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d("2021-01-04"), d("2021-01-05"), d("2021-01-06")}, cal.Days())

	all, err := Load(ctx, store, "trade_calendar", "")
	require.NoError(t, err)
	assert.Equal(t, 4, all.Len())

	_, err = Load(ctx, store, "missing", "")
	assert.Error(t, err)
}
