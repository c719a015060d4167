package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	pkgch "AShareData/pkg/clickhouse"
	applogger "AShareData/pkg/logger"
)

const insertChunk = 2000

// ClickHouseStore implements Store over ClickHouse tables keyed by
// (date, id). Tables are expected to be ReplacingMergeTree ordered by
// (date, id) so repeated inserts of a key collapse to the latest version.
type ClickHouseStore struct {
	db       *sql.DB
	database string
	d        dialect
	l        *applogger.Logger
}

// NewClickHouseStore wraps ch. When final is set reads use FINAL so
// unmerged versions of a key are not returned.
func NewClickHouseStore(ch *pkgch.Client, final bool) *ClickHouseStore {
	d := clickhouseDialect
	d.final = final
	return &ClickHouseStore{db: ch.DB(), database: ch.Database(), d: d}
}

// SetLogger injects a structured logger.
func (s *ClickHouseStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseStore) table(name string) string {
	if strings.Contains(name, ".") || s.database == "" {
		return name
	}
	return s.database + "." + name
}

func (s *ClickHouseStore) Read(ctx context.Context, table string, q domrepo.Query) ([]models.RawRow, error) {
	start := time.Now()
	stmt, args, err := s.d.buildSelect(s.table(table), q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		s.logError("clickhouse read query error", table, err)
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		s.logError("clickhouse read scan error", table, err)
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse read ok",
			applogger.String("table", table),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// Upsert inserts rows in chunks of insertChunk, one statement per
// column set.
func (s *ClickHouseStore) Upsert(ctx context.Context, table string, rows []models.RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	batches, err := batchRows(rows)
	if err != nil {
		return err
	}
	for _, b := range batches {
		for from := 0; from < len(b.rows); from += insertChunk {
			to := min(from+insertChunk, len(b.rows))
			stmt, args, err := s.d.buildInsert(s.table(table), b.cols, b.rows[from:to])
			if err != nil {
				return err
			}
			if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
				s.logError("clickhouse upsert error", table, err)
				return fmt.Errorf("upsert %s: %w", table, err)
			}
		}
	}
	if s.l != nil {
		s.l.Info("clickhouse upsert ok",
			applogger.String("table", table),
			applogger.Int("rows", len(rows)),
		)
	}
	return nil
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the client owns the connection.
func (s *ClickHouseStore) Close() error { return nil }

func (s *ClickHouseStore) logError(msg, table string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("table", table), applogger.Error(err))
	}
}

// scanRows reads a result set of unknown shape into raw rows.
func scanRows(rows *sql.Rows) ([]models.RawRow, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	out := make([]models.RawRow, 0, 256)
	for rows.Next() {
		dest := make([]any, len(names))
		for i, ct := range types {
			dest[i] = scanTarget(ct)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		vals := make([]any, len(dest))
		for i, p := range dest {
			vals[i] = deref(p)
		}
		r, err := rowFromColumns(names, vals)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// scanTarget allocates a destination matching the driver's scan type.
func scanTarget(ct *sql.ColumnType) any {
	if st := ct.ScanType(); st != nil {
		return newOf(st)
	}
	var v any
	return &v
}
