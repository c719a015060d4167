package models

import "time"

// DateLayout is the wire format of a trading date.
const DateLayout = time.DateOnly

// Key is the two-part identity of a stored row.
type Key struct {
	Date time.Time
	ID   string
}

// RawRow is one stored row keyed by (date, instrument id).
// Values holds the projected columns.
type RawRow struct {
	Date   time.Time      `json:"date"`
	ID     string         `json:"id"`
	Values map[string]any `json:"values,omitempty"`
}

// Key returns the row identity.
func (r RawRow) Key() Key { return Key{Date: Day(r.Date), ID: r.ID} }

// Day truncates t to its calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDay formats a date as YYYY-MM-DD.
func FormatDay(t time.Time) string { return t.Format(DateLayout) }
