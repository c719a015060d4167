package models

import "time"

// Series is an aligned (date, instrument) result. A cell that is absent
// means "no value" for that date and instrument.
type Series[T any] struct {
	Dates []time.Time
	IDs   []string
	cells map[Key]T
}

// NewSeries creates an empty series over the given axes.
func NewSeries[T any](dates []time.Time, ids []string) *Series[T] {
	ds := make([]time.Time, len(dates))
	for i, d := range dates {
		ds[i] = Day(d)
	}
	return &Series[T]{
		Dates: ds,
		IDs:   append([]string(nil), ids...),
		cells: make(map[Key]T, len(dates)*len(ids)),
	}
}

// Set stores v at (date, id).
func (s *Series[T]) Set(date time.Time, id string, v T) {
	s.cells[Key{Date: Day(date), ID: id}] = v
}

// Get returns the value at (date, id) and whether one exists.
func (s *Series[T]) Get(date time.Time, id string) (T, bool) {
	v, ok := s.cells[Key{Date: Day(date), ID: id}]
	return v, ok
}

// Len returns the number of cells holding a value.
func (s *Series[T]) Len() int { return len(s.cells) }

// Record is one flattened cell of a series.
type Record struct {
	Date  time.Time
	ID    string
	Value any
	Valid bool
}

// Records flattens the series in date-major, then id order. Cells
// without a value are included with Valid=false.
func (s *Series[T]) Records() []Record {
	out := make([]Record, 0, len(s.Dates)*len(s.IDs))
	for _, d := range s.Dates {
		for _, id := range s.IDs {
			v, ok := s.cells[Key{Date: d, ID: id}]
			r := Record{Date: d, ID: id, Valid: ok}
			if ok {
				r.Value = v
			}
			out = append(out, r)
		}
	}
	return out
}
