// Package calendar holds the ordered set of known trading days.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
)

var errEmpty = errors.New("calendar: no trading days")

// Calendar is an immutable, strictly increasing sequence of trading days.
type Calendar struct {
	days  []time.Time
	index map[time.Time]int
}

// New builds a calendar from days in any order. Duplicates collapse.
func New(days []time.Time) (*Calendar, error) {
	uniq := make(map[time.Time]struct{}, len(days))
	sorted := make([]time.Time, 0, len(days))
	for _, d := range days {
		d = models.Day(d)
		if _, ok := uniq[d]; ok {
			continue
		}
		uniq[d] = struct{}{}
		sorted = append(sorted, d)
	}
	if len(sorted) == 0 {
		return nil, errEmpty
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	index := make(map[time.Time]int, len(sorted))
	for i, d := range sorted {
		index[d] = i
	}
	return &Calendar{days: sorted, index: index}, nil
}

// Load reads the calendar table. When column is set only rows whose
// column value is truthy count as trading days.
func Load(ctx context.Context, store domrepo.Store, table, column string) (*Calendar, error) {
	q := domrepo.Query{}
	if column != "" {
		q.Columns = []string{column}
	}
	rows, err := store.Read(ctx, table, q)
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}

	days := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		if column != "" && !truthy(r.Values[column]) {
			continue
		}
		days = append(days, r.Date)
	}
	cal, err := New(days)
	if err != nil {
		return nil, fmt.Errorf("load calendar from %s: %w", table, err)
	}
	return cal, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case float64:
		return x != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	default:
		return false
	}
}

// Calendar returns c itself, so a loaded calendar can stand in wherever
// a lazily loaded one is expected.
func (c *Calendar) Calendar(context.Context) (*Calendar, error) { return c, nil }

// First returns the earliest trading day.
func (c *Calendar) First() time.Time { return c.days[0] }

// Last returns the latest trading day.
func (c *Calendar) Last() time.Time { return c.days[len(c.days)-1] }

// Len returns the number of trading days.
func (c *Calendar) Len() int { return len(c.days) }

// Days returns a copy of all trading days.
func (c *Calendar) Days() []time.Time {
	return append([]time.Time(nil), c.days...)
}

func (c *Calendar) inBounds(d time.Time) bool {
	return !d.Before(c.First()) && !d.After(c.Last())
}

// IsTradingDay reports membership. Dates outside the calendar are not
// trading days.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	_, ok := c.index[models.Day(date)]
	return ok
}

// TradingDays returns the trading days in [start, end], ascending.
func (c *Calendar) TradingDays(start, end time.Time) ([]time.Time, error) {
	s, e := models.Day(start), models.Day(end)
	if s.After(e) {
		return nil, fmt.Errorf("%s > %s: %w", models.FormatDay(s), models.FormatDay(e), models.ErrInvalidRange)
	}
	if !c.inBounds(s) || !c.inBounds(e) {
		return nil, fmt.Errorf("[%s, %s] outside [%s, %s]: %w",
			models.FormatDay(s), models.FormatDay(e),
			models.FormatDay(c.First()), models.FormatDay(c.Last()), models.ErrOutOfRange)
	}
	lo := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(s) })
	hi := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(e) })
	return append([]time.Time{}, c.days[lo:hi]...), nil
}

// Offset moves n trading days from date. A non-trading date first snaps
// to the next trading day when n > 0, or the previous one when n <= 0,
// and that snap counts as the first step. So Offset(saturday, 1) is the
// following Monday and Offset(saturday, -1) the preceding Friday.
func (c *Calendar) Offset(date time.Time, n int) (time.Time, error) {
	d := models.Day(date)
	if !c.inBounds(d) {
		return time.Time{}, fmt.Errorf("%s outside [%s, %s]: %w",
			models.FormatDay(d), models.FormatDay(c.First()), models.FormatDay(c.Last()), models.ErrOutOfRange)
	}

	steps := n
	pos, ok := c.index[d]
	if !ok {
		next := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(d) })
		switch {
		case n > 0:
			pos, n = next, n-1
		case n < 0:
			pos, n = next-1, n+1
		default:
			pos = next - 1
		}
	}

	target := pos + n
	if target < 0 || target >= len(c.days) {
		return time.Time{}, fmt.Errorf("offset %d from %s: %w", steps, models.FormatDay(d), models.ErrOutOfRange)
	}
	return c.days[target], nil
}

// Previous returns the trading day before date.
func (c *Calendar) Previous(date time.Time) (time.Time, error) { return c.Offset(date, -1) }

// Next returns the trading day after date.
func (c *Calendar) Next(date time.Time) (time.Time, error) { return c.Offset(date, 1) }

// Validate normalizes dates to midnight UTC and fails with
// ErrInvalidDate on the first one that is not a trading day.
func (c *Calendar) Validate(dates []time.Time) ([]time.Time, error) {
	out := make([]time.Time, len(dates))
	for i, d := range dates {
		d = models.Day(d)
		if !c.IsTradingDay(d) {
			return nil, fmt.Errorf("%s: %w", models.FormatDay(d), models.ErrInvalidDate)
		}
		out[i] = d
	}
	return out, nil
}
