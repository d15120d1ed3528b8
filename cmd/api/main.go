package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/api"
	"github.com/dvloznov/onebook-ledger/internal/app"
	"github.com/dvloznov/onebook-ledger/internal/config"
	"github.com/dvloznov/onebook-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/upload"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("ONEBOOK_CONFIG"), "YAML config file; ONEBOOK_* variables override it")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log := logger.NewWithLevel(cfg.LogLevel, cfg.LogJSON)
	logger.SetDefault(log)
	ctx := logger.WithContext(context.Background(), log)

	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open repository")
	}
	defer repo.Close()

	deps, err := app.NewIngestDeps(ctx, cfg, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up ingestion")
	}
	if deps.Categorizer == nil {
		log.Info().Msg("Model categorization disabled")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Server.QueueSize, cfg.Server.Workers, jobStore)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	if err := jobQueue.Start(workerCtx, app.NewJobHandler(deps)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	handler := api.NewRouter(api.Deps{
		Repo:      repo,
		Uploader:  upload.NewUploader(deps.Storage),
		Publisher: jobQueue,
		Jobs:      jobStore,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("backend", cfg.Storage.Backend).
			Str("uploads", cfg.Uploads).
			Int("workers", cfg.Server.Workers).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before the repository closes.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorkers()

	log.Info().Msg("Server exited")
}
