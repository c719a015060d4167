package api

import (
	"context"
	"net/http"
	"time"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"AShareData/internal/domain/models"
	domrepo "AShareData/internal/domain/repository"
	"AShareData/internal/services/reader"
	"AShareData/internal/services/stats"
	xhttp "AShareData/pkg/http"
	applogger "AShareData/pkg/logger"
	"AShareData/pkg/util"
)

// snapshotParallelism bounds concurrent factor reads per snapshot.
const snapshotParallelism = 4

type CalendarRequest struct {
	Start string `query:"start" validate:"required"`
	End   string `query:"end" validate:"required"`
}

type OffsetRequest struct {
	Date string `query:"date" validate:"required"`
	N    int    `query:"n"`
}

type FactorRequest struct {
	Name  string `param:"name" validate:"required"`
	Dates string `query:"dates" validate:"required"`
	IDs   string `query:"ids"`
}

type SnapshotRequest struct {
	Date    string `query:"date" validate:"required"`
	IDs     string `query:"ids"`
	Factors string `query:"factors"`
}

// WeightsRequest leaves defaulting to the handler: an explicit zero must
// reach the weight function and fail there.
type WeightsRequest struct {
	N        int     `query:"n" validate:"lte=10000"`
	HalfLife float64 `query:"half_life"`
}

const (
	defaultWeightsN        = 10
	defaultWeightsHalfLife = 5
)

type OffsetResponse struct {
	Date   string `json:"date"`
	N      int    `json:"n"`
	Result string `json:"result"`
}

type RecordResponse struct {
	Date  string `json:"date"`
	ID    string `json:"id"`
	Value any    `json:"value"`
}

type SnapshotResponse struct {
	Date    string                    `json:"date"`
	IDs     []string                  `json:"ids"`
	Factors map[string]map[string]any `json:"factors"`
}

type WeightsResponse struct {
	N        int       `json:"n"`
	HalfLife float64   `json:"half_life"`
	Weights  []float64 `json:"weights"`
}

// FactorsHandler serves the calendar, the factor catalog and factor
// values over HTTP.
type FactorsHandler struct {
	l      *applogger.Logger
	reader *reader.Reader
	store  domrepo.Store
}

func NewFactorsHandler(l *applogger.Logger, r *reader.Reader, store domrepo.Store) *FactorsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &FactorsHandler{l: l, reader: r, store: store}
}

func (h *FactorsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/calendar", h.Calendar)
	g.GET("/calendar/offset", h.Offset)
	g.GET("/factors", h.Catalog)
	g.GET("/factors/:name", h.Factor)
	g.GET("/snapshot", h.Snapshot)
	g.GET("/weights", h.Weights)
	e.GET("/healthz", h.Health)
}

func (h *FactorsHandler) Calendar(c echo.Context) error {
	req := &CalendarRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, err := util.ParseDate(req.Start)
	if err != nil {
		return xhttp.AppErrorResponse(c, invalidParam("start", err))
	}
	end, err := util.ParseDate(req.End)
	if err != nil {
		return xhttp.AppErrorResponse(c, invalidParam("end", err))
	}

	cal, err := h.reader.Calendar(c.Request().Context())
	if err != nil {
		return h.fail(c, "load calendar", err)
	}
	days, err := cal.TradingDays(start, end)
	if err != nil {
		return h.fail(c, "trading days", err)
	}
	return xhttp.ListResponse(c, formatDays(days))
}

func (h *FactorsHandler) Offset(c echo.Context) error {
	req := &OffsetRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := util.ParseDate(req.Date)
	if err != nil {
		return xhttp.AppErrorResponse(c, invalidParam("date", err))
	}

	cal, err := h.reader.Calendar(c.Request().Context())
	if err != nil {
		return h.fail(c, "load calendar", err)
	}
	res, err := cal.Offset(date, req.N)
	if err != nil {
		return h.fail(c, "offset", err)
	}
	return xhttp.SuccessResponse(c, OffsetResponse{
		Date:   models.FormatDay(date),
		N:      req.N,
		Result: models.FormatDay(res),
	})
}

func (h *FactorsHandler) Catalog(c echo.Context) error {
	catalog := h.reader.Catalog()
	return xhttp.ListResponse(c, catalog)
}

func (h *FactorsHandler) Factor(c echo.Context) error {
	req := &FactorRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	dates, err := util.ParseDates(req.Dates)
	if err != nil {
		return xhttp.AppErrorResponse(c, invalidParam("dates", err))
	}
	ctx := c.Request().Context()

	ids := util.SplitList(req.IDs)
	if len(ids) == 0 {
		if ids, err = h.allStocks(ctx); err != nil {
			return h.fail(c, "list stocks", err)
		}
	}

	records, err := h.query(ctx, req.Name, dates, ids)
	if err != nil {
		return h.fail(c, "query factor", err, applogger.String("factor", req.Name))
	}
	return xhttp.ListResponse(c, records)
}

// Snapshot reads several factors at one date concurrently. Without ids
// it covers the stocks listed on that date; without factors it covers
// the whole catalog.
func (h *FactorsHandler) Snapshot(c echo.Context) error {
	req := &SnapshotRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := util.ParseDate(req.Date)
	if err != nil {
		return xhttp.AppErrorResponse(c, invalidParam("date", err))
	}
	ctx := c.Request().Context()

	names := util.SplitList(req.Factors)
	if len(names) == 0 {
		for _, b := range h.reader.Catalog() {
			names = append(names, b.Name)
		}
	}
	ids := util.SplitList(req.IDs)
	if len(ids) == 0 {
		stocks, err := h.reader.Stocks()
		if err != nil {
			return h.fail(c, "stocks", err)
		}
		if ids, err = stocks.Listed(ctx, date); err != nil {
			return h.fail(c, "listed stocks", err)
		}
	}

	results := make([][]RecordResponse, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotParallelism)
	for i, name := range names {
		g.Go(func() error {
			recs, err := h.query(gctx, name, []time.Time{date}, ids)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return h.fail(c, "snapshot", err)
	}

	resp := SnapshotResponse{
		Date:    models.FormatDay(date),
		IDs:     ids,
		Factors: make(map[string]map[string]any, len(names)),
	}
	for i, name := range names {
		byID := make(map[string]any, len(results[i]))
		for _, r := range results[i] {
			byID[r.ID] = r.Value
		}
		resp.Factors[name] = byID
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *FactorsHandler) Weights(c echo.Context) error {
	req := &WeightsRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if c.QueryParam("n") == "" {
		req.N = defaultWeightsN
	}
	if c.QueryParam("half_life") == "" {
		req.HalfLife = defaultWeightsHalfLife
	}
	w, err := stats.ExponentialWeights(req.N, req.HalfLife)
	if err != nil {
		return h.fail(c, "weights", err)
	}
	return xhttp.SuccessResponse(c, WeightsResponse{N: req.N, HalfLife: req.HalfLife, Weights: w})
}

func (h *FactorsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Health(ctx); err != nil {
		h.l.Warn("health check failed", applogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, "store unavailable")
	}
	return xhttp.SuccessResponse(c, "ok")
}

func (h *FactorsHandler) query(ctx context.Context, name string, dates []time.Time, ids []string) ([]RecordResponse, error) {
	f, err := h.reader.Lookup(name)
	if err != nil {
		return nil, err
	}
	b, _ := h.reader.Binding(name)
	recs, err := f.Query(ctx, dates, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RecordResponse, len(recs))
	for i, r := range recs {
		out[i] = RecordResponse{Date: models.FormatDay(r.Date), ID: r.ID, Value: nullable(b.Type, r)}
	}
	return out, nil
}

func (h *FactorsHandler) allStocks(ctx context.Context) ([]string, error) {
	stocks, err := h.reader.Stocks()
	if err != nil {
		return nil, err
	}
	return stocks.All(ctx)
}

// fail maps domain errors onto HTTP statuses and logs server-side ones.
func (h *FactorsHandler) fail(c echo.Context, op string, err error, fields ...applogger.Field) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.l.Error(op, append(fields, applogger.Error(err))...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

var domainErrors = xhttp.ErrorMap{
	{Target: models.ErrInvalidDate, Code: "ERR_INVALID_DATE", Status: http.StatusBadRequest},
	{Target: models.ErrInvalidRange, Code: "ERR_INVALID_RANGE", Status: http.StatusBadRequest},
	{Target: models.ErrOutOfRange, Code: "ERR_OUT_OF_RANGE", Status: http.StatusBadRequest},
	{Target: models.ErrInvalidArgument, Code: "ERR_INVALID_ARGUMENT", Status: http.StatusBadRequest},
	{Target: models.ErrUnknownFactor, Code: "ERR_UNKNOWN_FACTOR", Status: http.StatusNotFound},
	{Target: models.ErrDataIntegrity, Code: "ERR_DATA_INTEGRITY", Status: http.StatusInternalServerError},
}

func toAppError(err error) *xhttp.AppError { return domainErrors.Map(err) }

func invalidParam(field string, err error) *xhttp.AppError {
	return xhttp.NewAppError("ERR_INVALID_FORMAT", field, err.Error(), http.StatusBadRequest).WithError(err)
}

// nullable renders a cell so that "no value" encodes as JSON null.
func nullable(t reader.ValueType, r models.Record) any {
	switch t {
	case reader.Float:
		v, _ := r.Value.(float64)
		return null.NewFloat(v, r.Valid)
	case reader.String:
		v, _ := r.Value.(string)
		return null.NewString(v, r.Valid)
	case reader.Bool:
		v, _ := r.Value.(bool)
		return null.NewBool(v, r.Valid)
	default:
		if !r.Valid {
			return nil
		}
		return r.Value
	}
}

func formatDays(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = models.FormatDay(d)
	}
	return out
}
