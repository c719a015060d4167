package repository

import (
	"context"
	"time"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
)

// InstrumentedStore records read/write volume, latency and errors of
// the wrapped Store.
type InstrumentedStore struct {
	next domrepo.Store
	m    domrepo.Metrics
}

func NewInstrumentedStore(next domrepo.Store, m domrepo.Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, m: m}
}

func (s *InstrumentedStore) Read(ctx context.Context, table string, q domrepo.Query) ([]models.RawRow, error) {
	start := time.Now()
	rows, err := s.next.Read(ctx, table, q)
	s.m.RecordLatency("store_read", time.Since(start).Seconds())
	if err != nil {
		s.m.RecordError("store_read")
		return nil, err
	}
	s.m.RecordStoreRead(table, len(rows))
	return rows, nil
}

func (s *InstrumentedStore) Upsert(ctx context.Context, table string, rows []models.RawRow) error {
	start := time.Now()
	err := s.next.Upsert(ctx, table, rows)
	s.m.RecordLatency("store_upsert", time.Since(start).Seconds())
	if err != nil {
		s.m.RecordError("store_upsert")
		return err
	}
	s.m.RecordStoreWrite(table, len(rows))
	return nil
}

func (s *InstrumentedStore) Health(ctx context.Context) error { return s.next.Health(ctx) }

func (s *InstrumentedStore) Close() error { return s.next.Close() }

var _ domrepo.Store = (*InstrumentedStore)(nil)
