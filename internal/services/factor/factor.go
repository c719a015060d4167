// Package factor reconstructs aligned (date, instrument) series from
// tables stored in one of three layouts.
package factor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	"AShareData/internal/services/calendar"
)

// CalendarSource yields the trading calendar, loading it if needed.
type CalendarSource interface {
	Calendar(ctx context.Context) (*calendar.Calendar, error)
}

// Queryable is the type-erased view of a factor.
type Queryable interface {
	Name() string
	Kind() Kind
	Table() string
	Column() string
	Query(ctx context.Context, dates []time.Time, ids []string) ([]models.Record, error)
}

// Option customizes a factor.
type Option func(*options)

type options struct {
	metrics domrepo.Metrics
}

// WithMetrics records every Get.
func WithMetrics(m domrepo.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Factor is a named, typed view over one table column. It holds no
// rows; every Get reads storage afresh.
type Factor[T any] struct {
	name   string
	kind   Kind
	table  string
	column string
	store  domrepo.Store
	cal    CalendarSource
	decode Decoder[T]
	opts   options
}

// New binds a factor. Construction never touches storage. OnTheRecord
// factors ignore column and decode presence through dec(true) and
// absence through dec(false).
func New[T any](name string, kind Kind, table, column string, store domrepo.Store, cal CalendarSource, dec Decoder[T], opts ...Option) (*Factor[T], error) {
	if name == "" || table == "" {
		return nil, fmt.Errorf("factor name and table are required")
	}
	switch kind {
	case Compact, Continuous:
		if column == "" {
			return nil, fmt.Errorf("factor %s: %s factor needs a column", name, kind)
		}
	case OnTheRecord:
		column = ""
		if _, err := dec(true); err != nil {
			return nil, fmt.Errorf("factor %s: on_the_record needs a bool decoder: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("factor %s: %s", name, kind)
	}

	f := &Factor[T]{
		name:   name,
		kind:   kind,
		table:  table,
		column: column,
		store:  store,
		cal:    cal,
		decode: dec,
	}
	for _, opt := range opts {
		opt(&f.opts)
	}
	return f, nil
}

// NewCompact binds a forward-filled factor.
func NewCompact[T any](name, table, column string, store domrepo.Store, cal CalendarSource, dec Decoder[T], opts ...Option) (*Factor[T], error) {
	return New(name, Compact, table, column, store, cal, dec, opts...)
}

// NewContinuous binds an exact-date factor.
func NewContinuous[T any](name, table, column string, store domrepo.Store, cal CalendarSource, dec Decoder[T], opts ...Option) (*Factor[T], error) {
	return New(name, Continuous, table, column, store, cal, dec, opts...)
}

// NewOnTheRecord binds an event-presence factor.
func NewOnTheRecord(name, table string, store domrepo.Store, cal CalendarSource, opts ...Option) (*Factor[bool], error) {
	return New(name, OnTheRecord, table, "", store, cal, Bool, opts...)
}

func (f *Factor[T]) Name() string   { return f.name }
func (f *Factor[T]) Kind() Kind     { return f.kind }
func (f *Factor[T]) Table() string  { return f.table }
func (f *Factor[T]) Column() string { return f.column }

// Get returns the series over dates × ids. Every date must be a trading
// day; that is checked before storage is read. Instruments with no
// stored data have no value (false for OnTheRecord).
func (f *Factor[T]) Get(ctx context.Context, dates []time.Time, ids []string) (*models.Series[T], error) {
	start := time.Now()
	series, err := f.get(ctx, dates, ids)
	if m := f.opts.metrics; m != nil {
		m.RecordFactorGet(f.name, f.kind.String())
		m.RecordLatency("factor_get", time.Since(start).Seconds())
		if err != nil {
			m.RecordError("factor_get")
		}
	}
	return series, err
}

func (f *Factor[T]) get(ctx context.Context, dates []time.Time, ids []string) (*models.Series[T], error) {
	cal, err := f.cal.Calendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("factor %s: %w", f.name, err)
	}
	days, err := cal.Validate(dates)
	if err != nil {
		return nil, fmt.Errorf("factor %s: %w", f.name, err)
	}
	ids = uniqueIDs(ids)

	series := models.NewSeries[T](days, ids)
	if len(days) == 0 || len(ids) == 0 {
		return series, nil
	}

	switch f.kind {
	case Compact:
		err = f.getCompact(ctx, series)
	case Continuous:
		err = f.getContinuous(ctx, series)
	case OnTheRecord:
		err = f.getOnTheRecord(ctx, series)
	default:
		err = fmt.Errorf("unsupported kind %s", f.kind)
	}
	if err != nil {
		return nil, fmt.Errorf("factor %s: %w", f.name, err)
	}
	return series, nil
}

// Query is Get flattened to records.
func (f *Factor[T]) Query(ctx context.Context, dates []time.Time, ids []string) ([]models.Record, error) {
	s, err := f.Get(ctx, dates, ids)
	if err != nil {
		return nil, err
	}
	return s.Records(), nil
}

func (f *Factor[T]) read(ctx context.Context, ids []string, q domrepo.Query) ([]models.RawRow, error) {
	q.IDs = ids
	rows, err := f.store.Read(ctx, f.table, q)
	if err != nil {
		return nil, err
	}
	seen := make(map[models.Key]struct{}, len(rows))
	for _, r := range rows {
		k := r.Key()
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%s has duplicate rows for (%s, %s): %w",
				f.table, models.FormatDay(k.Date), k.ID, models.ErrDataIntegrity)
		}
		seen[k] = struct{}{}
	}
	return rows, nil
}

// value decodes the factor column of r. A NULL cell has no value.
func (f *Factor[T]) value(r models.RawRow) (T, bool, error) {
	var zero T
	raw, ok := r.Values[f.column]
	if !ok || raw == nil {
		return zero, false, nil
	}
	v, err := f.decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("%s.%s at (%s, %s): %v: %w",
			f.table, f.column, models.FormatDay(r.Date), r.ID, err, models.ErrDataIntegrity)
	}
	return v, true, nil
}

// getCompact reads every change up to the last requested date in one
// query and carries the latest one forward to each date.
func (f *Factor[T]) getCompact(ctx context.Context, s *models.Series[T]) error {
	last := s.Dates[0]
	for _, d := range s.Dates[1:] {
		if d.After(last) {
			last = d
		}
	}
	rows, err := f.read(ctx, s.IDs, domrepo.Query{End: last, Columns: []string{f.column}})
	if err != nil {
		return err
	}

	history := make(map[string][]models.RawRow, len(s.IDs))
	for _, r := range rows {
		r.Date = models.Day(r.Date)
		history[r.ID] = append(history[r.ID], r)
	}

	for _, id := range s.IDs {
		h := history[id]
		if len(h) == 0 {
			continue
		}
		sort.Slice(h, func(i, j int) bool { return h[i].Date.Before(h[j].Date) })
		for _, d := range s.Dates {
			// first change strictly after d, so i-1 is the as-of row
			i := sort.Search(len(h), func(i int) bool { return h[i].Date.After(d) })
			if i == 0 {
				continue
			}
			v, ok, err := f.value(h[i-1])
			if err != nil {
				return err
			}
			if ok {
				s.Set(d, id, v)
			}
		}
	}
	return nil
}

func (f *Factor[T]) getContinuous(ctx context.Context, s *models.Series[T]) error {
	rows, err := f.read(ctx, s.IDs, domrepo.Query{Dates: s.Dates, Columns: []string{f.column}})
	if err != nil {
		return err
	}
	wanted := wantedKeys(s)
	for _, r := range rows {
		if _, ok := wanted[r.Key()]; !ok {
			continue
		}
		v, ok, err := f.value(r)
		if err != nil {
			return err
		}
		if ok {
			s.Set(r.Date, r.ID, v)
		}
	}
	return nil
}

func (f *Factor[T]) getOnTheRecord(ctx context.Context, s *models.Series[T]) error {
	rows, err := f.read(ctx, s.IDs, domrepo.Query{Dates: s.Dates})
	if err != nil {
		return err
	}
	present, err := f.decode(true)
	if err != nil {
		return err
	}
	absent, err := f.decode(false)
	if err != nil {
		return err
	}

	for _, d := range s.Dates {
		for _, id := range s.IDs {
			s.Set(d, id, absent)
		}
	}
	wanted := wantedKeys(s)
	for _, r := range rows {
		if _, ok := wanted[r.Key()]; ok {
			s.Set(r.Date, r.ID, present)
		}
	}
	return nil
}

func wantedKeys[T any](s *models.Series[T]) map[models.Key]struct{} {
	out := make(map[models.Key]struct{}, len(s.Dates)*len(s.IDs))
	for _, d := range s.Dates {
		for _, id := range s.IDs {
			out[models.Key{Date: d, ID: id}] = struct{}{}
		}
	}
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var (
	_ Queryable = (*Factor[float64])(nil)
	_ Queryable = (*Factor[string])(nil)
	_ Queryable = (*Factor[bool])(nil)
)
