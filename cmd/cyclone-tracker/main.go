package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/cyclone-tracker/internal/api/http"
	"github.com/i474232898/cyclone-tracker/internal/config"
	"github.com/i474232898/cyclone-tracker/internal/cyclone"
	"github.com/i474232898/cyclone-tracker/internal/observability"
	"github.com/i474232898/cyclone-tracker/internal/scheduler"
	"github.com/i474232898/cyclone-tracker/internal/tracker"
	"github.com/i474232898/cyclone-tracker/internal/weather"
	"github.com/i474232898/cyclone-tracker/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	detector, err := cyclone.NewDetector(cfg.Thresholds())
	if err != nil {
		log.Error("invalid detection thresholds", "error", err)
		os.Exit(1)
	}

	// One fetcher per upstream so each has its own circuit breaker.
	forecastFetcher := providers.NewFetcher(cfg.FetcherConfig("forecast"),
		providers.WithLogger(log), providers.WithMetrics(metrics))
	defer forecastFetcher.Close()

	var marine weather.MarineProvider
	if cfg.MarineEnabled {
		marineFetcher := providers.NewFetcher(cfg.FetcherConfig("marine"),
			providers.WithLogger(log), providers.WithMetrics(metrics))
		defer marineFetcher.Close()
		marine = providers.NewMarineProvider(marineFetcher, cfg.MarineAPIURL)
	}

	openMeteo := providers.NewOpenMeteoProvider(forecastFetcher, cfg.WeatherAPIURL)
	service := tracker.NewService(
		openMeteo,
		marine,
		detector,
		tracker.WithCurrentProvider(openMeteo),
		tracker.WithForecastDays(cfg.ForecastDays),
		tracker.WithLogger(log),
		tracker.WithMetrics(metrics),
	)

	sched := scheduler.New(cfg.WatchLocations, cfg.WatchInterval, service,
		scheduler.WithLogger(log), scheduler.WithMetrics(metrics))
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "cyclone-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Retries with backoff can outlast a short write timeout.
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: httpapi.ErrorHandler,
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New())

	httpapi.RegisterRoutes(app, service, registry)

	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
