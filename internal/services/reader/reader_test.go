package reader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	"AShareData/internal/repository"
	"AShareData/internal/services/factor"
)

func d(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// spyStore counts reads per table and can fail the first n reads.
type spyStore struct {
	*repository.MemoryStore
	mu       sync.Mutex
	reads    map[string]int
	failures int
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: repository.NewMemoryStore(), reads: map[string]int{}}
}

func (s *spyStore) Read(ctx context.Context, table string, q domrepo.Query) ([]models.RawRow, error) {
	s.mu.Lock()
	s.reads[table]++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return nil, errors.New("storage unavailable")
	}
	return s.MemoryStore.Read(ctx, table, q)
}

func (s *spyStore) readsOf(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[table]
}

func seed(t *testing.T, s domrepo.Store) {
	t.Helper()
	ctx := context.Background()
	up := func(table string, rows ...models.RawRow) {
		require.NoError(t, s.Upsert(ctx, table, rows))
	}
	up("trade_calendar",
		models.RawRow{Date: d("2021-01-04"), ID: "SSE", Values: map[string]any{"is_open": true}},
		models.RawRow{Date: d("2021-01-05"), ID: "SSE", Values: map[string]any{"is_open": true}},
		models.RawRow{Date: d("2021-01-06"), ID: "SSE", Values: map[string]any{"is_open": true}},
	)
	up("adj_factor", models.RawRow{Date: d("2021-01-04"), ID: "X", Values: map[string]any{"adj_factor": 10.0}})
	up("sec_name", models.RawRow{Date: d("2020-01-02"), ID: "X", Values: map[string]any{"sec_name": "Ping An Bank"}})
	up("stock_daily",
		models.RawRow{Date: d("2021-01-04"), ID: "X", Values: map[string]any{"close": 18.5}},
		models.RawRow{Date: d("2021-01-06"), ID: "X", Values: map[string]any{"close": 19.0}},
	)
	up("const_limit", models.RawRow{Date: d("2021-01-05"), ID: "X"})
	up("stock_listing", models.RawRow{Date: d("2020-01-02"), ID: "X", Values: map[string]any{"listed": true}})
}

func TestConstructionDoesNotReadStorage(t *testing.T) {
	store := newSpyStore()
	r, err := New(store)
	require.NoError(t, err)

	for _, b := range r.Catalog() {
		_, err := r.Lookup(b.Name)
		require.NoError(t, err)
	}
	_, err = r.Stocks()
	require.NoError(t, err)

	assert.Empty(t, store.reads)
}

func TestReaderEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	seed(t, store)
	r, err := New(store)
	require.NoError(t, err)

	dates := []time.Time{d("2021-01-05"), d("2021-01-06")}

	adj, err := r.AdjFactor()
	require.NoError(t, err)
	s, err := adj.Get(ctx, dates, []string{"X"})
	require.NoError(t, err)
	for _, day := range dates {
		v, ok := s.Get(day, "X")
		require.True(t, ok)
		assert.Equal(t, 10.0, v)
	}

	name, err := r.SecName()
	require.NoError(t, err)
	ns, err := name.Get(ctx, dates[:1], []string{"X"})
	require.NoError(t, err)
	v, ok := ns.Get(dates[0], "X")
	require.True(t, ok)
	assert.Equal(t, "Ping An Bank", v)

	closePx, err := r.ClosePrice()
	require.NoError(t, err)
	cs, err := closePx.Get(ctx, dates, []string{"X"})
	require.NoError(t, err)
	_, ok = cs.Get(d("2021-01-05"), "X")
	assert.False(t, ok)

	limit, err := r.ConstLimit()
	require.NoError(t, err)
	ls, err := limit.Get(ctx, dates, []string{"X"})
	require.NoError(t, err)
	hit, _ := ls.Get(d("2021-01-05"), "X")
	miss, _ := ls.Get(d("2021-01-06"), "X")
	assert.True(t, hit)
	assert.False(t, miss)

	stocks, err := r.Stocks()
	require.NoError(t, err)
	listed, err := stocks.Listed(ctx, d("2021-01-04"))
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, listed)

	assert.Equal(t, 1, store.readsOf("trade_calendar"), "calendar is loaded once")
}

func TestFactorsAreMemoized(t *testing.T) {
	r, err := New(newSpyStore())
	require.NoError(t, err)

	a, err := r.Lookup(AdjFactor)
	require.NoError(t, err)
	b, err := r.Lookup(AdjFactor)
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := New(newSpyStore())
	require.NoError(t, err)
	c, err := other.Lookup(AdjFactor)
	require.NoError(t, err)
	assert.NotSame(t, a, c, "readers share nothing")
}

func TestConcurrentAccessIsSafe(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	seed(t, store)
	r, err := New(store)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]factor.Queryable, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := r.Lookup(ClosePrice)
			if !assert.NoError(t, err) {
				return
			}
			results[i] = f
			_, err = f.Query(ctx, []time.Time{d("2021-01-04")}, []string{"X"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, f := range results[1:] {
		assert.Same(t, results[0], f)
	}
	assert.Equal(t, 1, store.readsOf("trade_calendar"))
}

func TestCalendarLoadIsRetried(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	seed(t, store)
	store.failures = 1
	r, err := New(store)
	require.NoError(t, err)

	_, err = r.Calendar(ctx)
	require.Error(t, err)

	cal, err := r.Calendar(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cal.Len())
	assert.Equal(t, 2, store.readsOf("trade_calendar"))
}

func TestLookupUnknown(t *testing.T) {
	r, err := New(newSpyStore())
	require.NoError(t, err)
	_, err = r.Lookup("market_cap")
	assert.ErrorIs(t, err, models.ErrUnknownFactor)
}

func TestBindingsOverrideAndExtend(t *testing.T) {
	ctx := context.Background()
	store := newSpyStore()
	seed(t, store)
	require.NoError(t, store.Upsert(ctx, "stock_daily", []models.RawRow{
		{Date: d("2021-01-04"), ID: "X", Values: map[string]any{"open": 18.0}},
	}))

	r, err := New(store, WithBindings(
		Binding{Name: "open", Kind: factor.Continuous, Type: Float, Table: "stock_daily", Column: "open"},
		Binding{Name: AdjFactor, Kind: factor.Compact, Type: Float, Table: "adj_factor_v2", Column: "adj"},
	))
	require.NoError(t, err)

	catalog := r.Catalog()
	assert.Len(t, catalog, len(DefaultCatalog())+1)
	assert.Equal(t, "open", catalog[len(catalog)-1].Name)

	adj, err := r.AdjFactor()
	require.NoError(t, err)
	assert.Equal(t, "adj_factor_v2", adj.Table())

	open, err := r.Lookup("open")
	require.NoError(t, err)
	recs, err := open.Query(ctx, []time.Time{d("2021-01-04")}, []string{"X"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 18.0, recs[0].Value)
}

func TestTypedAccessorRejectsRetypedBinding(t *testing.T) {
	r, err := New(newSpyStore(), WithBindings(
		Binding{Name: SecName, Kind: factor.Compact, Type: Float, Table: "sec_name", Column: "sec_name"},
	))
	require.NoError(t, err)
	_, err = r.SecName()
	assert.Error(t, err)
}

func TestInvalidBindings(t *testing.T) {
	for _, b := range []Binding{
		{Name: "x", Kind: factor.Compact, Type: Float, Table: "t"},
		{Name: "x", Kind: factor.OnTheRecord, Type: Float, Table: "t"},
		{Name: "x", Kind: factor.Continuous, Type: "decimal", Table: "t", Column: "c"},
		{Kind: factor.Continuous, Type: Float, Table: "t", Column: "c"},
	} {
		_, err := New(newSpyStore(), WithBindings(b))
		assert.Error(t, err, "%+v", b)
	}
}
