package server

import (
	"context"
	"errors"
	"time"

	"AShareData/internal/domain/repository"
	"AShareData/internal/services/reader"
	xhttp "AShareData/pkg/http"
	pkgkafka "AShareData/pkg/kafka"
	applogger "AShareData/pkg/logger"
)

// App owns the HTTP server and the optional ingestion consumer.
type App struct {
	l        *applogger.Logger
	http     *xhttp.Server
	consumer *pkgkafka.Consumer
	reader   *reader.Reader
	store    repository.Store

	shutdownTimeout time.Duration
}

// New creates a new App. consumer may be nil.
func New(l *applogger.Logger, srv *xhttp.Server, consumer *pkgkafka.Consumer, r *reader.Reader, store repository.Store) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		l:               l,
		http:            srv,
		consumer:        consumer,
		reader:          r,
		store:           store,
		shutdownTimeout: 15 * time.Second,
	}
}

// Run starts every component and blocks until ctx is cancelled, then
// shuts down.
func (a *App) Run(ctx context.Context) error {
	a.warmUp(ctx)

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return err
		}
	}

	if err := a.http.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// warmUp loads the trading calendar so the first request does not pay
// for it. A failure is logged; the reader retries on demand.
func (a *App) warmUp(ctx context.Context) {
	if a.reader == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.store.Health(ctx); err != nil {
		a.l.Warn("store health check failed", applogger.Error(err))
		return
	}
	cal, err := a.reader.Calendar(ctx)
	if err != nil {
		a.l.Warn("calendar preload failed", applogger.Error(err))
		return
	}
	a.l.Info("calendar loaded",
		applogger.Date("first", cal.First()),
		applogger.Date("last", cal.Last()),
		applogger.Int("days", cal.Len()),
		applogger.Int("factors", len(a.reader.Catalog())),
	)
}

// shutdown stops the HTTP server first so no new reads arrive, then the
// consumer. Storage clients are closed by the DI cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.http.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
