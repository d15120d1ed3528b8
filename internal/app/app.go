// Package app builds the configured services shared by the onebook binaries.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/onebook-ledger/internal/categorize"
	"github.com/dvloznov/onebook-ledger/internal/config"
	"github.com/dvloznov/onebook-ledger/internal/infra/bigquery"
	"github.com/dvloznov/onebook-ledger/internal/infra/sqlite"
	"github.com/dvloznov/onebook-ledger/internal/ingest"
	"github.com/dvloznov/onebook-ledger/internal/jobs"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/dvloznov/onebook-ledger/internal/upload"
)

// OpenRepository opens the storage backend named by cfg.
func OpenRepository(ctx context.Context, cfg config.Config) (store.Repository, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case config.BackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return repo, nil
	case config.BackendBigQuery:
		repo, err := bigquery.NewRepository(ctx, bigquery.Target{
			ProjectID: cfg.Storage.ProjectID,
			DatasetID: cfg.Storage.DatasetID,
		})
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("OpenRepository: unknown storage backend %q", cfg.Storage.Backend)
	}
}

// NewCategorizer returns the model categorizer, or nil when it is disabled.
func NewCategorizer(ctx context.Context, cfg config.Config) (categorize.Categorizer, error) {
	if !cfg.Gemini.Enabled {
		return nil, nil
	}
	client, err := categorize.NewGeminiClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewCategorizer: %w", err)
	}
	c := categorize.NewModelCategorizer(client)
	if cfg.Gemini.Model != "" {
		c.Model = cfg.Gemini.Model
	}
	return c, nil
}

// NewIngestDeps assembles the ingestion collaborators around repo.
func NewIngestDeps(ctx context.Context, cfg config.Config, repo store.Repository) (ingest.Deps, error) {
	cat, err := NewCategorizer(ctx, cfg)
	if err != nil {
		return ingest.Deps{}, err
	}
	return ingest.Deps{
		Repo:        repo,
		Storage:     upload.NewStorage(cfg.Uploads),
		Categorizer: cat,
	}, nil
}

// NewJobHandler returns the worker handler that ingests the bill file of a
// ParseBillJob and records the outcome on the job.
func NewJobHandler(deps ingest.Deps) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		parseJob, ok := job.(*jobs.ParseBillJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", parseJob.JobID).
			Str("file_id", parseJob.File.FileID).
			Str("storage_path", parseJob.File.StoragePath).
			Logger()
		log.Info().Msg("Processing parse job")

		file := parseJob.File
		res, err := ingest.IngestBillFile(logger.WithContext(ctx, log), deps, &file)
		if err != nil {
			return err
		}

		parseJob.ParsingRunID = res.ParsingRunID
		parseJob.EntryCount = res.EntryCount
		parseJob.Duplicate = res.Duplicate
		return nil
	}
}
