package repository

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
)

const (
	dateColumn = "date"
	idColumn   = "id"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect captures the differences between the SQL backends.
type dialect struct {
	quote       func(string) string
	placeholder func(n int) string
	final       bool // ClickHouse FINAL modifier on reads
	onConflict  bool // render ON CONFLICT (date, id) DO UPDATE on inserts
}

var (
	clickhouseDialect = dialect{
		quote:       func(s string) string { return "`" + s + "`" },
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		quote:       func(s string) string { return `"` + s + `"` },
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		onConflict:  true,
	}
)

func checkIdent(kind, s string) error {
	if !identRe.MatchString(s) {
		return fmt.Errorf("invalid %s name %q", kind, s)
	}
	return nil
}

// qualified quotes a possibly schema-qualified table name.
func (d dialect) qualified(table string) (string, error) {
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	for i, p := range parts {
		if err := checkIdent("table", p); err != nil {
			return "", err
		}
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, "."), nil
}

// buildSelect renders a read of table filtered by q, ordered by (date, id).
func (d dialect) buildSelect(table string, q domrepo.Query) (string, []any, error) {
	from, err := d.qualified(table)
	if err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(q.Columns) > 0 {
		parts := []string{d.quote(dateColumn), d.quote(idColumn)}
		for _, c := range q.Columns {
			if err := checkIdent("column", c); err != nil {
				return "", nil, err
			}
			parts = append(parts, d.quote(c))
		}
		cols = strings.Join(parts, ", ")
	}

	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return d.placeholder(len(args))
	}
	if !q.Start.IsZero() {
		where = append(where, d.quote(dateColumn)+" >= "+next(models.Day(q.Start)))
	}
	if !q.End.IsZero() {
		where = append(where, d.quote(dateColumn)+" <= "+next(models.Day(q.End)))
	}
	if len(q.Dates) > 0 {
		ph := make([]string, len(q.Dates))
		for i, t := range q.Dates {
			ph[i] = next(models.Day(t))
		}
		where = append(where, d.quote(dateColumn)+" IN ("+strings.Join(ph, ", ")+")")
	}
	if len(q.IDs) > 0 {
		ph := make([]string, len(q.IDs))
		for i, id := range q.IDs {
			ph[i] = next(id)
		}
		where = append(where, d.quote(idColumn)+" IN ("+strings.Join(ph, ", ")+")")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, from)
	if d.final {
		b.WriteString(" FINAL")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s, %s", d.quote(dateColumn), d.quote(idColumn))
	return b.String(), args, nil
}

// buildInsert renders a multi-row insert of rows over cols. Cells missing
// from a row are bound as NULL.
func (d dialect) buildInsert(table string, cols []string, rows []models.RawRow) (string, []any, error) {
	into, err := d.qualified(table)
	if err != nil {
		return "", nil, err
	}
	names := []string{d.quote(dateColumn), d.quote(idColumn)}
	for _, c := range cols {
		if err := checkIdent("column", c); err != nil {
			return "", nil, err
		}
		names = append(names, d.quote(c))
	}

	args := make([]any, 0, len(rows)*len(names))
	tuples := make([]string, len(rows))
	for i, r := range rows {
		ph := make([]string, 0, len(names))
		args = append(args, models.Day(r.Date))
		ph = append(ph, d.placeholder(len(args)))
		args = append(args, r.ID)
		ph = append(ph, d.placeholder(len(args)))
		for _, c := range cols {
			args = append(args, r.Values[c])
			ph = append(ph, d.placeholder(len(args)))
		}
		tuples[i] = "(" + strings.Join(ph, ", ") + ")"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s", into, strings.Join(names, ", "), strings.Join(tuples, ", "))
	if d.onConflict {
		fmt.Fprintf(&b, " ON CONFLICT (%s, %s)", d.quote(dateColumn), d.quote(idColumn))
		if len(cols) == 0 {
			b.WriteString(" DO NOTHING")
		} else {
			set := make([]string, len(cols))
			for i, c := range cols {
				set[i] = fmt.Sprintf("%s = EXCLUDED.%s", d.quote(c), d.quote(c))
			}
			b.WriteString(" DO UPDATE SET " + strings.Join(set, ", "))
		}
	}
	return b.String(), args, nil
}

// insertBatch is a set of rows sharing the same value columns.
type insertBatch struct {
	cols []string
	rows []models.RawRow
}

// batchRows merges rows with the same key (later values win) and groups
// the result by column set, so an insert never nulls a column a row did
// not carry. Batches come out in first-seen order.
func batchRows(rows []models.RawRow) ([]insertBatch, error) {
	merged := make(map[models.Key]int, len(rows))
	uniq := make([]models.RawRow, 0, len(rows))
	for _, r := range rows {
		k := r.Key()
		if i, ok := merged[k]; ok {
			for c, v := range r.Values {
				uniq[i].Values[c] = v
			}
			continue
		}
		vals := make(map[string]any, len(r.Values))
		for c, v := range r.Values {
			vals[c] = v
		}
		merged[k] = len(uniq)
		uniq = append(uniq, models.RawRow{Date: k.Date, ID: k.ID, Values: vals})
	}

	var out []insertBatch
	index := make(map[string]int)
	for _, r := range uniq {
		cols := make([]string, 0, len(r.Values))
		for c := range r.Values {
			if err := checkIdent("column", c); err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
		sort.Strings(cols)
		sig := strings.Join(cols, ",")
		i, ok := index[sig]
		if !ok {
			i = len(out)
			index[sig] = i
			out = append(out, insertBatch{cols: cols})
		}
		out[i].rows = append(out[i].rows, r)
	}
	return out, nil
}

// rowFromColumns splits a scanned row into key and values.
func rowFromColumns(names []string, vals []any) (models.RawRow, error) {
	r := models.RawRow{Values: make(map[string]any, len(names))}
	var haveDate, haveID bool
	for i, n := range names {
		switch n {
		case dateColumn:
			t, ok := asTime(vals[i])
			if !ok {
				return r, fmt.Errorf("column %s: unexpected type %T", n, vals[i])
			}
			r.Date = models.Day(t)
			haveDate = true
		case idColumn:
			r.ID = fmt.Sprint(vals[i])
			haveID = true
		default:
			r.Values[n] = vals[i]
		}
	}
	if !haveDate || !haveID {
		return r, fmt.Errorf("result set lacks %s/%s columns", dateColumn, idColumn)
	}
	return r, nil
}
