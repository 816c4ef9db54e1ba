// Package main is the entrypoint for the task tracker server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MacJediWizard/tasktracker/internal/api"
	"github.com/MacJediWizard/tasktracker/internal/api/handlers"
	"github.com/MacJediWizard/tasktracker/internal/api/middleware"
	"github.com/MacJediWizard/tasktracker/internal/auth"
	"github.com/MacJediWizard/tasktracker/internal/comments"
	"github.com/MacJediWizard/tasktracker/internal/config"
	"github.com/MacJediWizard/tasktracker/internal/db"
	"github.com/MacJediWizard/tasktracker/internal/metrics"
	"github.com/MacJediWizard/tasktracker/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadServerConfig()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if cfg.Environment != config.EnvProduction {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Str("env", string(cfg.Environment)).
		Msg("Starting task tracker server")

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics, err := metrics.NewPrometheusMetrics(reg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register metrics")
		return 1
	}

	commentService := comments.NewService(database, logger).WithRecorder(promMetrics)

	deps := api.Dependencies{
		Accounts:   database,
		Attendance: database,
		Tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Database:   database,
		Metrics:    promMetrics,
	}

	if cfg.AttachmentBucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.AttachmentBucket,
			Prefix:          cfg.AttachmentPrefix,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize attachment storage")
			return 1
		}
		commentService.WithAttachmentStore(s3Store)
		deps.Storage = s3Store
		logger.Info().Str("bucket", cfg.AttachmentBucket).Msg("Attachments stored in S3")
	} else {
		logger.Info().Msg("ATTACHMENT_BUCKET not set, attachments stored in the database")
	}

	deps.Comments = commentService
	deps.Conversations = comments.NewInbox(commentService, database, logger)

	var trusted []string
	if cfg.TrustProxy {
		trusted = []string{"0.0.0.0/0", "::/0"}
	}

	routerCfg := api.Config{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.CORSOrigins,
		RateLimit: middleware.RateLimitConfig{
			Requests:   cfg.RateLimitRequest,
			Period:     cfg.RateLimitPeriod,
			RedisURL:   cfg.RedisURL,
			TrustProxy: cfg.TrustProxy,
		},
		MaxBodyBytes:   cfg.MaxBodyBytes,
		TrustedProxies: trusted,
		Version: handlers.VersionInfo{
			Version:   Version,
			Commit:    Commit,
			BuildDate: BuildDate,
		},
	}

	router, err := api.NewRouter(routerCfg, deps, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server error")
		return 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	logger.Info().Msg("Server stopped gracefully")
	return 0
}
