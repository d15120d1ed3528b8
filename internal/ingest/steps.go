// Package ingest turns a stored bill file into persisted ledger entries as a
// fixed sequence of steps sharing one PipelineState.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/adapters"
	"github.com/dvloznov/onebook-ledger/internal/categorize"
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/dvloznov/onebook-ledger/internal/upload"
	"github.com/google/uuid"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	File         *domain.BillFile
	ParsingRunID string
	LocalPath    string
	Entries      []domain.Entry
	Records      []*store.EntryRecord
	Categorized  int

	// Duplicate is set when an already parsed file with the same checksum
	// exists; File then points at that file and the remaining steps are
	// skipped.
	Duplicate bool

	cleanup func()
}

// Deps are the collaborators the steps need. Categorizer may be nil.
type Deps struct {
	Repo        store.Repository
	Storage     upload.StorageService
	Categorizer categorize.Categorizer
	Now         func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// ParserType names the parser recorded on parsing runs for a source type.
func ParserType(sourceType string) string {
	return "ADAPTER_" + strings.ToUpper(sourceType)
}

// failRun marks the run and the file failed and returns err.
func failRun(ctx context.Context, deps Deps, state *PipelineState, err error) error {
	if state.ParsingRunID != "" {
		deps.Repo.MarkParsingRunFailed(ctx, state.ParsingRunID, err)
	}
	if state.File != nil {
		if uerr := deps.Repo.UpdateBillFileStatus(ctx, state.File.FileID, domain.BillStatusFailed, 0); uerr != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(uerr).Str("file_id", state.File.FileID).Msg("failRun: updating bill file status")
		}
	}
	return err
}

// Step 1: RegisterBillFileStep records the bill file, reusing an existing
// record with the same id or checksum.
type RegisterBillFileStep struct{ Deps Deps }

func (s *RegisterBillFileStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	f := state.File
	if f == nil {
		return errors.New("RegisterBillFileStep: no bill file")
	}

	existing, err := s.Deps.Repo.GetBillFile(ctx, f.FileID)
	switch {
	case err == nil:
		state.File = existing
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("RegisterBillFileStep: %w", err)
	}

	if f.Checksum != "" {
		dup, err := s.Deps.Repo.FindBillFileByChecksum(ctx, f.Checksum)
		if err != nil {
			return fmt.Errorf("RegisterBillFileStep: %w", err)
		}
		if dup != nil && dup.Status == domain.BillStatusParsed {
			log.Info().Str("file_id", dup.FileID).Str("checksum", f.Checksum).Msg("RegisterBillFileStep: file already ingested")
			state.File = dup
			state.Duplicate = true
			return nil
		}
	}

	if err := s.Deps.Repo.InsertBillFile(ctx, f); err != nil {
		return fmt.Errorf("RegisterBillFileStep: %w", err)
	}
	return nil
}

// Step 2: StartParsingRunStep starts a parsing run (status=RUNNING).
type StartParsingRunStep struct{ Deps Deps }

func (s *StartParsingRunStep) Execute(ctx context.Context, state *PipelineState) error {
	runID, err := s.Deps.Repo.StartParsingRun(ctx, state.File.FileID, ParserType(state.File.SourceType))
	if err != nil {
		return failRun(ctx, s.Deps, state, err)
	}
	state.ParsingRunID = runID
	return nil
}

// Step 3: FetchFileStep makes the stored file available on local disk.
type FetchFileStep struct{ Deps Deps }

func (s *FetchFileStep) Execute(ctx context.Context, state *PipelineState) error {
	path, cleanup, err := upload.Materialize(ctx, s.Deps.Storage, state.File.StoragePath)
	if err != nil {
		return failRun(ctx, s.Deps, state, err)
	}
	state.LocalPath = path
	state.cleanup = cleanup
	return nil
}

// Step 4: ParseEntriesStep runs the source adapter over the local file.
type ParseEntriesStep struct{ Deps Deps }

func (s *ParseEntriesStep) Execute(ctx context.Context, state *PipelineState) error {
	entries, err := adapters.ParseFile(ctx, state.File.SourceType, state.LocalPath)
	if state.cleanup != nil {
		state.cleanup()
		state.cleanup = nil
	}
	if err != nil {
		return failRun(ctx, s.Deps, state, err)
	}
	state.Entries = entries
	return nil
}

// Step 5: CategorizeUnknownStep asks the categorizer about entries the
// keyword rules could not place. Failures are logged and the entries stay
// unknown.
type CategorizeUnknownStep struct{ Deps Deps }

func (s *CategorizeUnknownStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Deps.Categorizer == nil {
		return nil
	}
	n, err := categorize.CategorizeUnknown(ctx, s.Deps.Categorizer, state.Entries)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("file_id", state.File.FileID).Msg("CategorizeUnknownStep: leaving entries uncategorized")
		return nil
	}
	state.Categorized = n
	return nil
}

// Step 6: InsertEntriesStep stores the entries with their provenance.
type InsertEntriesStep struct{ Deps Deps }

func (s *InsertEntriesStep) Execute(ctx context.Context, state *PipelineState) error {
	created := s.Deps.now().UTC()
	records := make([]*store.EntryRecord, len(state.Entries))
	for i, e := range state.Entries {
		records[i] = &store.EntryRecord{
			EntryID:      uuid.NewString(),
			FileID:       state.File.FileID,
			ParsingRunID: state.ParsingRunID,
			LineNo:       i + 1,
			Entry:        e,
			CreatedAt:    created,
		}
	}

	if len(records) > 0 {
		if err := s.Deps.Repo.InsertEntries(ctx, records); err != nil {
			return failRun(ctx, s.Deps, state, err)
		}
	}
	state.Records = records
	return nil
}

// Step 7: MarkSuccessStep marks the parsing run as SUCCESS and the file as
// parsed.
type MarkSuccessStep struct{ Deps Deps }

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Deps.Repo.MarkParsingRunSucceeded(ctx, state.ParsingRunID); err != nil {
		return err
	}
	if err := s.Deps.Repo.UpdateBillFileStatus(ctx, state.File.FileID, domain.BillStatusParsed, len(state.Records)); err != nil {
		return err
	}
	state.File.Status = domain.BillStatusParsed
	state.File.EntryCount = len(state.Records)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially. It stops early,
// without error, once a step flags the file as a duplicate.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	defer func() {
		if state.cleanup != nil {
			state.cleanup()
			state.cleanup = nil
		}
	}()

	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d: %w", i+1, err)
		}
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if state.Duplicate {
			return nil
		}
	}
	return nil
}

// NewBillIngestionPipeline creates the standard 7-step pipeline for
// ingesting a bill file.
func NewBillIngestionPipeline(deps Deps) *Pipeline {
	return NewPipeline(
		&RegisterBillFileStep{Deps: deps},
		&StartParsingRunStep{Deps: deps},
		&FetchFileStep{Deps: deps},
		&ParseEntriesStep{Deps: deps},
		&CategorizeUnknownStep{Deps: deps},
		&InsertEntriesStep{Deps: deps},
		&MarkSuccessStep{Deps: deps},
	)
}
