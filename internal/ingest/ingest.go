package ingest

import (
	"context"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
)

// Result summarizes one ingestion.
type Result struct {
	FileID       string `json:"file_id"`
	ParsingRunID string `json:"parsing_run_id,omitempty"`
	EntryCount   int    `json:"entry_count"`
	Categorized  int    `json:"categorized"`
	Duplicate    bool   `json:"duplicate"`
}

// IngestBillFile runs the standard pipeline for a stored bill file. On
// failure after the run started, the run and the file are marked failed.
func IngestBillFile(ctx context.Context, deps Deps, file *domain.BillFile) (*Result, error) {
	log := logger.FromContext(ctx).With().
		Str("file_id", file.FileID).
		Str("source_type", file.SourceType).
		Logger()
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{File: file}
	if err := NewBillIngestionPipeline(deps).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("IngestBillFile: failed")
		return nil, err
	}

	res := &Result{
		FileID:       state.File.FileID,
		ParsingRunID: state.ParsingRunID,
		EntryCount:   state.File.EntryCount,
		Categorized:  state.Categorized,
		Duplicate:    state.Duplicate,
	}
	log.Info().
		Str("parsing_run_id", res.ParsingRunID).
		Int("entries", res.EntryCount).
		Int("categorized", res.Categorized).
		Bool("duplicate", res.Duplicate).
		Msg("IngestBillFile: done")
	return res, nil
}
