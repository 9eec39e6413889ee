package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tlundberg/wishwatch/api/openapi"
	"github.com/tlundberg/wishwatch/internal/api/handlers"
	"github.com/tlundberg/wishwatch/internal/api/middleware"
	"github.com/tlundberg/wishwatch/internal/config"
	"github.com/tlundberg/wishwatch/internal/engine"
	"github.com/tlundberg/wishwatch/internal/fetch"
	"github.com/tlundberg/wishwatch/internal/notify"
	"github.com/tlundberg/wishwatch/internal/store"
	"github.com/tlundberg/wishwatch/pkg/logger"
	domain "github.com/tlundberg/wishwatch/pkg/types"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and poll scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewPostgres(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry := buildFetchers(cfg, log)
	dispatcher := notify.NewDispatcher(
		buildSink(cfg),
		cfg.Alerts.QueueSize,
		notify.WithDispatcherLogger(logger.Component(log, "dispatcher")),
	)

	eng := engine.New(db, registry, cfg,
		engine.WithLogger(logger.Component(log, "engine")),
		engine.WithPublisher(dispatcher),
	)
	scheduler := engine.NewScheduler(eng, db, cfg.Engine.MaxConcurrentFetches,
		engine.WithSchedulerLogger(logger.Component(log, "scheduler")),
	)
	maintenance := engine.NewMaintenance(eng, db, cfg, logger.Component(log, "maintenance"))

	go dispatcher.Run(ctx)
	schedDone := make(chan error, 1)
	go func() {
		schedDone <- scheduler.Run(ctx)
	}()

	if err := maintenance.Start(); err != nil {
		return fmt.Errorf("starting maintenance jobs: %w", err)
	}

	e := buildServer(cfg, log, db, scheduler, dispatcher)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}

	maintenance.Stop()
	if err := <-schedDone; err != nil {
		log.Error("scheduler exited with error", "error", err)
	}
	dispatcher.Wait()

	log.Info("stopped")
	return nil
}

// buildFetchers registers an HTTP fetcher per configured retailer, each with
// its own rate limiter.
func buildFetchers(cfg *config.Config, log *slog.Logger) *fetch.Registry {
	registry := fetch.NewRegistry()
	for name, rc := range cfg.Retailers {
		registry.Register(
			domain.Retailer(name),
			fetch.NewHTTPFetcher(
				domain.Retailer(name),
				rc.Endpoint,
				fetch.WithLimiter(fetch.NewLimiter(rc.PerSecond, rc.Burst)),
			),
		)
		log.Info("fetcher registered", "retailer", name, "endpoint", rc.Endpoint)
	}
	return registry
}

func buildSink(cfg *config.Config) notify.Sink {
	if cfg.Notifications.Webhook.Enabled {
		return notify.NewWebhookSink(
			cfg.Notifications.Webhook.URL,
			notify.WithHeaders(cfg.Notifications.Webhook.Headers),
		)
	}
	return notify.NewNoopSink()
}

func buildServer(
	cfg *config.Config,
	log *slog.Logger,
	db store.Store,
	scheduler *engine.Scheduler,
	dispatcher *notify.Dispatcher,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(middleware.Recovery(logger.Component(log, "api")))
	e.Use(middleware.RequestLog(logger.Component(log, "api")))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(db)
	products := handlers.NewProductHandler(db, scheduler)
	alerts := handlers.NewAlertHandler(db, dispatcher)

	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	openapi.RegisterRoutes(e)

	v1 := e.Group("/api/v1")
	v1.POST("/products", products.Create)
	v1.GET("/products", products.List)
	v1.GET("/products/:id", products.Get)
	v1.DELETE("/products/:id", products.Delete)
	v1.GET("/products/:id/history", products.History)
	v1.GET("/products/:id/alerts", alerts.ByProduct)
	v1.GET("/alerts", alerts.List)
	v1.GET("/alerts/:id", alerts.Get)
	v1.POST("/alerts/:id/read", alerts.MarkRead)
	v1.DELETE("/alerts/:id", alerts.Delete)

	return e
}
