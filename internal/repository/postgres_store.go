package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	pkgpg "AShareData/pkg/postgres"
	applogger "AShareData/pkg/logger"
)

// PostgresStore implements Store over PostgreSQL tables with a
// (date, id) primary key.
type PostgresStore struct {
	pool *pgxpool.Pool
	l    *applogger.Logger
}

func NewPostgresStore(c *pkgpg.Client) *PostgresStore {
	return &PostgresStore{pool: c.Pool()}
}

// SetLogger injects a structured logger.
func (s *PostgresStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *PostgresStore) Read(ctx context.Context, table string, q domrepo.Query) ([]models.RawRow, error) {
	start := time.Now()
	stmt, args, err := postgresDialect.buildSelect(table, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		s.logError("postgres read query error", table, err)
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	out := make([]models.RawRow, 0, 256)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			s.logError("postgres read scan error", table, err)
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		for i, v := range vals {
			vals[i] = pgValue(v)
		}
		r, err := rowFromColumns(names, vals)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.logError("postgres read rows error", table, err)
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	if s.l != nil {
		s.l.Debug("postgres read ok",
			applogger.String("table", table),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// Upsert writes rows with INSERT ... ON CONFLICT in one transaction.
func (s *PostgresStore) Upsert(ctx context.Context, table string, rows []models.RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	batches, err := batchRows(rows)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, b := range batches {
		// stay under the 65535 bind parameter limit
		chunk := max(1, 60000/(len(b.cols)+2))
		for from := 0; from < len(b.rows); from += chunk {
			to := min(from+chunk, len(b.rows))
			stmt, args, err := postgresDialect.buildInsert(table, b.cols, b.rows[from:to])
			if err != nil {
				return err
			}
			batch.Queue(stmt, args...)
		}
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		s.logError("postgres upsert error", table, err)
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	if s.l != nil {
		s.l.Info("postgres upsert ok",
			applogger.String("table", table),
			applogger.Int("rows", len(rows)),
		)
	}
	return nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the client owns the pool.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) logError(msg, table string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("table", table), applogger.Error(err))
	}
}

// pgValue normalizes driver values: NUMERIC becomes float64, dates stay
// time.Time, everything else passes through deref.
func pgValue(v any) any {
	switch n := v.(type) {
	case pgtype.Numeric:
		if !n.Valid {
			return nil
		}
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case time.Time:
		return n
	default:
		return deref(v)
	}
}

var (
	_ domrepo.Store = (*PostgresStore)(nil)
	_ domrepo.Store = (*ClickHouseStore)(nil)
)
