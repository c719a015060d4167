package repository

import (
	"slices"
	"time"

	"AShareData/internal/domain/models"
)

// Match reports whether a row passes the date, bound and id filters of q.
// Column projection is not checked.
func (q Query) Match(r models.RawRow) bool {
	d := models.Day(r.Date)
	if !q.Start.IsZero() && d.Before(models.Day(q.Start)) {
		return false
	}
	if !q.End.IsZero() && d.After(models.Day(q.End)) {
		return false
	}
	if len(q.Dates) > 0 && !slices.ContainsFunc(q.Dates, func(t time.Time) bool { return models.Day(t).Equal(d) }) {
		return false
	}
	if len(q.IDs) > 0 && !slices.Contains(q.IDs, r.ID) {
		return false
	}
	return true
}

// Project returns the subset of values named by q.Columns, or all values
// when no projection is set.
func (q Query) Project(values map[string]any) map[string]any {
	if len(q.Columns) == 0 {
		out := make(map[string]any, len(values))
		for k, v := range values {
			out[k] = v
		}
		return out
	}
	out := make(map[string]any, len(q.Columns))
	for _, c := range q.Columns {
		if v, ok := values[c]; ok {
			out[c] = v
		}
	}
	return out
}
