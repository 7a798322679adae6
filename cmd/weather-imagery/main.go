package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"

	httpapi "github.com/i474232898/weather-imagery/internal/api/http"
	"github.com/i474232898/weather-imagery/internal/catalog"
	"github.com/i474232898/weather-imagery/internal/config"
	"github.com/i474232898/weather-imagery/internal/forecast"
	"github.com/i474232898/weather-imagery/internal/imagery"
	"github.com/i474232898/weather-imagery/internal/logging"
	"github.com/i474232898/weather-imagery/internal/scheduler"
	"github.com/i474232898/weather-imagery/internal/source"
	"github.com/i474232898/weather-imagery/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.Logger()
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.Component("main")

	objects, err := newObjectStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to initialise object store")
	}

	subjects, err := catalog.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open catalog")
	}
	defer subjects.Close()

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := subjects.Seed(seedCtx, imagery.KindRadar, cfg.RadarSubjects); err != nil {
		log.Fatal().Err(err).Msg("failed to seed radar subjects")
	}
	if err := subjects.Seed(seedCtx, imagery.KindSatellite, cfg.SatelliteSubjects); err != nil {
		log.Fatal().Err(err).Msg("failed to seed satellite subjects")
	}
	cancelSeed()

	// Core service orchestrating the FTP source, cache and artifacts.
	service := imagery.NewService(imagery.Deps{
		Source:    source.NewFTP(cfg.FTPAddr, cfg.FTPDialTimeout),
		Store:     objects,
		Catalog:   subjects,
		Clock:     clockwork.NewRealClock(),
		ImageHost: cfg.ImageHost,
		Retention: cfg.CacheRetention,
	})

	// Backgrounds are generated once up front; radars that fail here are
	// composed on demand later.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 5*time.Minute)
	if err := service.ComposeBackgrounds(startupCtx); err != nil {
		log.Warn().Err(err).Msg("background pre-generation incomplete")
	}
	cancelStartup()

	// Scheduler that periodically refreshes frames and timelapses.
	sched := scheduler.New(cfg.RefreshInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	// Shared HTTP client for outbound forecast calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	app := fiber.New(fiber.Config{
		AppName:               "weather-imagery",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := subjects.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "degraded",
				"service": "weather-imagery",
				"catalog": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-imagery",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Handlers{
		Imagery:  service,
		Objects:  objects,
		Forecast: forecast.NewClient(httpClient, cfg.WillyWeatherAPIKey),
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("image_host", cfg.ImageHost).Msg("listening")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

func newObjectStore(cfg *config.AppConfig) (imagery.ObjectStore, error) {
	if cfg.StorageBackend == config.BackendMemory {
		return store.NewMemoryStore(), nil
	}

	s3, err := store.NewS3Store(store.S3Config{
		Endpoint:        cfg.Bucket.Endpoint,
		Region:          cfg.Bucket.Region,
		Bucket:          cfg.Bucket.Name,
		AccessKeyID:     cfg.Bucket.AccessKeyID,
		SecretAccessKey: cfg.Bucket.AccessSecretKey,
		UseSSL:          cfg.Bucket.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3.Ping(ctx); err != nil {
		return nil, err
	}
	return s3, nil
}
