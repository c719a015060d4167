package repository

import (
	"context"
	"sort"
	"sync"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
)

// MemoryStore is an in-process Store. Rows are kept per table keyed by
// (date, id), so Upsert is idempotent and duplicates cannot occur.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[models.Key]models.RawRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[models.Key]models.RawRow)}
}

func (s *MemoryStore) Read(ctx context.Context, table string, q domrepo.Query) ([]models.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.tables[table]
	out := make([]models.RawRow, 0, len(t))
	for _, r := range t {
		if !q.Match(r) {
			continue
		}
		out = append(out, models.RawRow{Date: r.Date, ID: r.ID, Values: q.Project(r.Values)})
	}
	sortRows(out)
	return out, nil
}

// Upsert merges values into existing rows with the same key.
func (s *MemoryStore) Upsert(ctx context.Context, table string, rows []models.RawRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[table]
	if !ok {
		t = make(map[models.Key]models.RawRow, len(rows))
		s.tables[table] = t
	}
	for _, r := range rows {
		k := r.Key()
		cur, ok := t[k]
		if !ok {
			cur = models.RawRow{Date: k.Date, ID: k.ID, Values: make(map[string]any, len(r.Values))}
		}
		for c, v := range r.Values {
			cur.Values[c] = v
		}
		t[k] = cur
	}
	return nil
}

func (s *MemoryStore) Health(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

func sortRows(rows []models.RawRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].ID < rows[j].ID
	})
}

var _ domrepo.Store = (*MemoryStore)(nil)
