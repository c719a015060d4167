package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	"AShareData/internal/repository"
)

type failingStore struct {
	*repository.MemoryStore
	err error
}

func (s failingStore) Upsert(context.Context, string, []models.RawRow) error { return s.err }

type errorCounter struct{ kinds []string }

func (m *errorCounter) RecordStoreRead(string, int)    {}
func (m *errorCounter) RecordStoreWrite(string, int)   {}
func (m *errorCounter) RecordFactorGet(string, string) {}
func (m *errorCounter) RecordError(kind string)        { m.kinds = append(m.kinds, kind) }
func (m *errorCounter) RecordLatency(string, float64)  {}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRowsHandlerUpserts(t *testing.T) {
	store := repository.NewMemoryStore()
	h := NewRowsHandler("ashare.rows", store, nil, nil)
	assert.Equal(t, "ashare.rows", h.Topic())

	msg := `{"table":"adj_factor","rows":[
		{"date":"2021-01-04","id":"000001.SZ","values":{"adj_factor":10}},
		{"date":"20210105","id":"600000.SH","values":{"adj_factor":2.5}}
	]}`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))

	rows, err := store.Read(context.Background(), "adj_factor", domrepo.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, day("2021-01-04"), rows[0].Date)
	assert.Equal(t, "000001.SZ", rows[0].ID)
	assert.Equal(t, 10.0, rows[0].Values["adj_factor"])
	assert.Equal(t, day("2021-01-05"), rows[1].Date)
}

func TestRowsHandlerIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	h := NewRowsHandler("ashare.rows", store, nil, nil)
	msg := []byte(`{"table":"const_limit","rows":[{"date":"2021-01-04","id":"X"}]}`)

	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg))

	rows, err := store.Read(context.Background(), "const_limit", domrepo.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRowsHandlerRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"no table":      `{"rows":[{"date":"2021-01-04","id":"X"}]}`,
		"no rows":       `{"table":"adj_factor","rows":[]}`,
		"missing id":    `{"table":"adj_factor","rows":[{"date":"2021-01-04"}]}`,
		"bad date":      `{"table":"adj_factor","rows":[{"date":"04/01/2021","id":"X"}]}`,
		"unknown table": `{"table":"secrets","rows":[{"date":"2021-01-04","id":"X"}]}`,
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			m := &errorCounter{}
			h := NewRowsHandler("ashare.rows", repository.NewMemoryStore(), m, nil, "adj_factor", "const_limit")
			err := h.Handle(context.Background(), []byte(msg))
			require.Error(t, err)
			assert.Equal(t, []string{"ingest_decode"}, m.kinds)
		})
	}
}

func TestRowsHandlerStoreError(t *testing.T) {
	cause := errors.New("connection refused")
	m := &errorCounter{}
	h := NewRowsHandler("ashare.rows", failingStore{MemoryStore: repository.NewMemoryStore(), err: cause}, m, nil)

	err := h.Handle(context.Background(), []byte(`{"table":"adj_factor","rows":[{"date":"2021-01-04","id":"X"}]}`))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []string{"ingest_upsert"}, m.kinds)
}
