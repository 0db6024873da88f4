// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server and the audit pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-booking/internal/audit"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/database/migrations"
	"github.com/Shivanand-hulikatti/event-booking/internal/handler"
	"github.com/Shivanand-hulikatti/event-booking/internal/logging"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
	"github.com/Shivanand-hulikatti/event-booking/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("service exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logrus.WithError(err).Warn("flushing spans failed")
		}
	}()

	// ── 1. Connect to PostgreSQL and migrate ─────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logrus.Info("connected to PostgreSQL")

	if err := migrations.Apply(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// ── 2. Audit pipeline ────────────────────────────────────────────────
	wmLogger := logging.NewWatermillAdapter(logrus.WithField("component", "audit"))
	transport, err := audit.NewTransport(cfg.Audit, wmLogger)
	if err != nil {
		return fmt.Errorf("audit transport: %w", err)
	}
	defer func() {
		if err := transport.Close(); err != nil {
			logrus.WithError(err).Warn("closing audit transport failed")
		}
	}()

	auditStore := audit.NewStore(pool)
	auditRouter, err := audit.NewRouter(transport.Subscriber, cfg.Audit.Topic, auditStore, wmLogger)
	if err != nil {
		return fmt.Errorf("audit router: %w", err)
	}
	auditPublisher := audit.NewPublisher(transport.Publisher, cfg.Audit.Topic, cfg.Audit.BufferSize)

	// ── 3. Wire up layers ────────────────────────────────────────────────
	eventSvc := service.NewEventService(repository.NewEventRepository(pool))
	bookingSvc := service.NewBookingService(
		repository.NewInventoryRepository(pool),
		auditPublisher,
		cfg.Booking.MaxQuantityPerBooking,
	)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.HTTP.Port),
		Handler: handler.NewRouter(handler.RouterConfig{
			Events:      eventSvc,
			Bookings:    bookingSvc,
			Activity:    auditStore,
			Audit:       auditPublisher,
			DB:          pool,
			CORSOrigins: cfg.HTTP.CORSOrigins,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// ── 4. Run until a signal arrives ────────────────────────────────────
	// The audit router and publisher stop after the HTTP server has drained.
	routerCtx, stopRouter := context.WithCancel(context.Background())
	defer stopRouter()
	publisherCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()
	publisherDone := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.Info("starting audit router")
		return auditRouter.Run(routerCtx)
	})

	g.Go(func() error {
		defer close(publisherDone)
		select {
		case <-auditRouter.Running():
		case <-gctx.Done():
			return nil
		}
		return auditPublisher.Run(publisherCtx)
	})

	g.Go(func() error {
		logrus.WithField("port", cfg.HTTP.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		stopPublisher()
		<-publisherDone
		stopRouter()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logrus.Info("server stopped")
	return nil
}
