package repository

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	"AShareData/pkg/cache"
	applogger "AShareData/pkg/logger"
)

// CachedStore decorates a Store with a read-through cache. Entries are
// keyed per table so Upsert can drop every cached read of that table.
// Cache failures degrade to a direct read.
//
// Rows are stored gob-encoded so cell types survive the round trip.
// A read holding a cell type gob does not know is served but not cached.
type CachedStore struct {
	next domrepo.Store
	c    cache.Service
	ttl  time.Duration
	l    *applogger.Logger
}

func NewCachedStore(next domrepo.Store, c cache.Service, ttl time.Duration) *CachedStore {
	return &CachedStore{next: next, c: c, ttl: ttl}
}

// SetLogger injects a structured logger.
func (s *CachedStore) SetLogger(l *applogger.Logger) { s.l = l }

func tablePrefix(table string) string {
	return cache.GenerateKey("rows", table) + ":"
}

func readKey(table string, q domrepo.Query) (string, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return tablePrefix(table) + cache.HashKey(string(b)), nil
}

func init() {
	gob.Register(time.Time{})
}

func encodeRows(rows []models.RawRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRows(data []byte) ([]models.RawRow, error) {
	var rows []models.RawRow
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CachedStore) Read(ctx context.Context, table string, q domrepo.Query) ([]models.RawRow, error) {
	key, err := readKey(table, q)
	if err != nil {
		return s.next.Read(ctx, table, q)
	}

	if data, err := s.c.Get(ctx, key); err == nil {
		if rows, err := decodeRows(data); err == nil {
			return rows, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.warn("cache get failed", table, err)
	}

	rows, err := s.next.Read(ctx, table, q)
	if err != nil {
		return nil, err
	}
	data, err := encodeRows(rows)
	if err != nil {
		s.warn("cache encode failed", table, err)
		return rows, nil
	}
	if err := s.c.Set(ctx, key, data, s.ttl); err != nil {
		s.warn("cache set failed", table, err)
	}
	return rows, nil
}

// Upsert writes through and invalidates the table's cached reads.
func (s *CachedStore) Upsert(ctx context.Context, table string, rows []models.RawRow) error {
	if err := s.next.Upsert(ctx, table, rows); err != nil {
		return err
	}
	if err := s.c.DeleteByPrefix(ctx, tablePrefix(table)); err != nil {
		return fmt.Errorf("invalidate %s: %w", table, err)
	}
	return nil
}

func (s *CachedStore) Health(ctx context.Context) error {
	return s.next.Health(ctx)
}

func (s *CachedStore) Close() error {
	cerr := s.c.Close()
	if err := s.next.Close(); err != nil {
		return err
	}
	return cerr
}

func (s *CachedStore) warn(msg, table string, err error) {
	if s.l != nil {
		s.l.Warn(msg, applogger.String("table", table), applogger.Error(err))
	}
}

var _ domrepo.Store = (*CachedStore)(nil)
