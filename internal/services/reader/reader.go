// Package reader is the entry point to the factor catalog.
package reader

import (
	"context"
	"fmt"
	"sync"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	"AShareData/internal/services/calendar"
	"AShareData/internal/services/factor"
	"AShareData/internal/services/tickers"
)

// Option configures a Reader.
type Option func(*Reader)

// WithCalendarTable sets the calendar table and its open flag column.
func WithCalendarTable(table, column string) Option {
	return func(r *Reader) {
		r.calTable, r.calColumn = table, column
	}
}

// WithListingTable sets the table and column backing Stocks.
func WithListingTable(table, column string) Option {
	return func(r *Reader) {
		r.listTable, r.listColumn = table, column
	}
}

// WithBindings adds or replaces catalog entries by name.
func WithBindings(bs ...Binding) Option {
	return func(r *Reader) {
		r.overrides = append(r.overrides, bs...)
	}
}

// WithMetrics instruments every factor the reader builds.
func WithMetrics(m domrepo.Metrics) Option {
	return func(r *Reader) {
		r.metrics = m
	}
}

// Reader hands out the calendar, the stock universe and the named
// factors over one store. Each is built on first use and kept for the
// reader's lifetime; readers share nothing with each other.
type Reader struct {
	store      domrepo.Store
	calTable   string
	calColumn  string
	listTable  string
	listColumn string
	overrides  []Binding
	metrics    domrepo.Metrics

	catalog []Binding
	byName  map[string]Binding

	mu      sync.Mutex
	cal     *calendar.Calendar
	stocks  *tickers.Universe
	factors map[string]factor.Queryable
}

// New validates the catalog. It does not read storage.
func New(store domrepo.Store, opts ...Option) (*Reader, error) {
	r := &Reader{
		store:      store,
		calTable:   "trade_calendar",
		calColumn:  "is_open",
		listTable:  "stock_listing",
		listColumn: "listed",
		factors:    make(map[string]factor.Queryable),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.byName = make(map[string]Binding)
	for _, b := range append(DefaultCatalog(), r.overrides...) {
		if err := b.validate(); err != nil {
			return nil, err
		}
		if _, ok := r.byName[b.Name]; !ok {
			r.catalog = append(r.catalog, b)
		} else {
			for i := range r.catalog {
				if r.catalog[i].Name == b.Name {
					r.catalog[i] = b
				}
			}
		}
		r.byName[b.Name] = b
	}
	return r, nil
}

// Catalog lists the bindings in declaration order.
func (r *Reader) Catalog() []Binding {
	return append([]Binding(nil), r.catalog...)
}

// Binding returns the binding registered under name.
func (r *Reader) Binding(name string) (Binding, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// Calendar loads the trading calendar once. A failed load is not
// remembered, so the next call retries.
func (r *Reader) Calendar(ctx context.Context) (*calendar.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cal != nil {
		return r.cal, nil
	}
	cal, err := calendar.Load(ctx, r.store, r.calTable, r.calColumn)
	if err != nil {
		return nil, err
	}
	r.cal = cal
	return cal, nil
}

// Stocks returns the instrument universe.
func (r *Reader) Stocks() (*tickers.Universe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stocks != nil {
		return r.stocks, nil
	}
	u, err := tickers.New(r.store, r, r.listTable, r.listColumn, r.factorOpts()...)
	if err != nil {
		return nil, err
	}
	r.stocks = u
	return u, nil
}

// Lookup returns the named factor.
func (r *Reader) Lookup(name string) (factor.Queryable, error) {
	b, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, models.ErrUnknownFactor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.factors[name]; ok {
		return f, nil
	}
	f, err := r.build(b)
	if err != nil {
		return nil, err
	}
	r.factors[name] = f
	return f, nil
}

func (r *Reader) factorOpts() []factor.Option {
	if r.metrics == nil {
		return nil
	}
	return []factor.Option{factor.WithMetrics(r.metrics)}
}

func (r *Reader) build(b Binding) (factor.Queryable, error) {
	opts := r.factorOpts()
	switch b.Type {
	case Float:
		return factor.New(b.Name, b.Kind, b.Table, b.Column, r.store, r, factor.Float64, opts...)
	case String:
		return factor.New(b.Name, b.Kind, b.Table, b.Column, r.store, r, factor.String, opts...)
	case Bool:
		return factor.New(b.Name, b.Kind, b.Table, b.Column, r.store, r, factor.Bool, opts...)
	default:
		return nil, fmt.Errorf("binding %s: unknown type %q", b.Name, b.Type)
	}
}

func typed[T any](r *Reader, name string) (*factor.Factor[T], error) {
	q, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	f, ok := q.(*factor.Factor[T])
	if !ok {
		return nil, fmt.Errorf("factor %s is bound as %T", name, q)
	}
	return f, nil
}

func (r *Reader) SecName() (*factor.Factor[string], error) { return typed[string](r, SecName) }

func (r *Reader) AdjFactor() (*factor.Factor[float64], error) { return typed[float64](r, AdjFactor) }

func (r *Reader) FreeAShares() (*factor.Factor[float64], error) {
	return typed[float64](r, FreeAShares)
}

func (r *Reader) TotalShares() (*factor.Factor[float64], error) {
	return typed[float64](r, TotalShares)
}

func (r *Reader) FloatingShares() (*factor.Factor[float64], error) {
	return typed[float64](r, FloatingShares)
}

// ConstLimit flags one-price limit-up or limit-down days.
func (r *Reader) ConstLimit() (*factor.Factor[bool], error) { return typed[bool](r, ConstLimit) }

func (r *Reader) ClosePrice() (*factor.Factor[float64], error) {
	return typed[float64](r, ClosePrice)
}

var _ factor.CalendarSource = (*Reader)(nil)
