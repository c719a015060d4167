package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	pkgkafka "AShareData/pkg/kafka"
	applogger "AShareData/pkg/logger"
	"AShareData/pkg/util"
)

// RowsMessage is the ingestion payload:
//
//	{"table": "adj_factor", "rows": [{"date": "2021-01-04", "id": "000001.SZ", "values": {"adj_factor": 1.0}}]}
type RowsMessage struct {
	Table string       `json:"table" validate:"required"`
	Rows  []RowPayload `json:"rows" validate:"required,min=1,dive"`
}

type RowPayload struct {
	Date   string         `json:"date" validate:"required"`
	ID     string         `json:"id" validate:"required"`
	Values map[string]any `json:"values"`
}

// RowsHandler consumes row batches from Kafka and upserts them.
type RowsHandler struct {
	topic    string
	store    domrepo.Store
	metrics  domrepo.Metrics
	l        *applogger.Logger
	validate *validator.Validate
	allowed  map[string]struct{}
}

// NewRowsHandler creates the handler. When tables is non-empty, messages
// for any other table are rejected.
func NewRowsHandler(topic string, store domrepo.Store, metrics domrepo.Metrics, l *applogger.Logger, tables ...string) *RowsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	h := &RowsHandler{
		topic:    topic,
		store:    store,
		metrics:  metrics,
		l:        l,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if len(tables) > 0 {
		h.allowed = make(map[string]struct{}, len(tables))
		for _, t := range tables {
			h.allowed[t] = struct{}{}
		}
	}
	return h
}

func (h *RowsHandler) Topic() string { return h.topic }

// Handle decodes one message and upserts its rows. Malformed payloads are
// permanent failures; storage errors are retried by the consumer.
func (h *RowsHandler) Handle(ctx context.Context, b []byte) error {
	rows, table, err := h.decode(b)
	if err != nil {
		h.recordError("ingest_decode")
		return pkgkafka.Permanent(err)
	}

	start := time.Now()
	err = h.store.Upsert(ctx, table, rows)
	if h.metrics != nil {
		h.metrics.RecordLatency("ingest_upsert", time.Since(start).Seconds())
	}
	if err != nil {
		h.recordError("ingest_upsert")
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	h.l.Debug("rows ingested", applogger.String("table", table), applogger.Int("rows", len(rows)))
	return nil
}

func (h *RowsHandler) decode(b []byte) ([]models.RawRow, string, error) {
	var m RowsMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, "", fmt.Errorf("decode rows message: %w", err)
	}
	if err := h.validate.Struct(m); err != nil {
		return nil, "", fmt.Errorf("invalid rows message: %w", err)
	}
	if h.allowed != nil {
		if _, ok := h.allowed[m.Table]; !ok {
			return nil, "", fmt.Errorf("table %q is not ingestible", m.Table)
		}
	}

	rows := make([]models.RawRow, 0, len(m.Rows))
	for i, p := range m.Rows {
		d, err := util.ParseDate(p.Date)
		if err != nil {
			return nil, "", fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, models.RawRow{Date: d, ID: p.ID, Values: p.Values})
	}
	return rows, m.Table, nil
}

func (h *RowsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*RowsHandler)(nil)
