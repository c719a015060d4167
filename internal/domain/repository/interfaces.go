package repository

import (
	"context"
	"time"

	"AShareData/internal/domain/models"
)

// Query narrows a table read. Every field is optional; the zero Query
// reads the full table.
type Query struct {
	Dates   []time.Time // exact dates
	Start   time.Time   // inclusive lower bound, zero = open
	End     time.Time   // inclusive upper bound, zero = open
	IDs     []string    // instrument ids
	Columns []string    // projected value columns
}

// Store is the (date, id) keyed table contract the factor layer reads
// through. Implementations must not merge duplicate keys on read.
type Store interface {
	Read(ctx context.Context, table string, q Query) ([]models.RawRow, error)
	// Upsert writes rows idempotently by (date, id).
	Upsert(ctx context.Context, table string, rows []models.RawRow) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordStoreRead(table string, rows int)
	RecordStoreWrite(table string, rows int)
	RecordFactorGet(name, kind string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
