package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/google/uuid"
)

// StartParsingRun records a RUNNING run and returns its id.
func (r *Repository) StartParsingRun(ctx context.Context, fileID, parserType string) (string, error) {
	runID := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO parsing_runs (parsing_run_id, file_id, started_ts, parser_type, parser_version, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, fileID, time.Now().UTC().Format(timestampLayout), parserType, store.ParserVersion, store.RunStatusRunning)
	if err != nil {
		return "", fmt.Errorf("StartParsingRun: %w", err)
	}
	return runID, nil
}

// MarkParsingRunFailed records the failure; errors are only logged.
func (r *Repository) MarkParsingRunFailed(ctx context.Context, runID string, parseErr error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE parsing_runs SET status = ?, finished_ts = ?, error_message = ?
		WHERE parsing_run_id = ?`,
		store.RunStatusFailed, time.Now().UTC().Format(timestampLayout), store.TruncateError(parseErr), runID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("parsing_run_id", runID).Msg("MarkParsingRunFailed: update failed")
	}
}

// MarkParsingRunSucceeded sets the run to SUCCESS and supersedes earlier
// successful runs of the same file.
func (r *Repository) MarkParsingRunSucceeded(ctx context.Context, runID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE parsing_runs SET status = ?
		WHERE status = ?
		  AND parsing_run_id != ?
		  AND file_id = (SELECT file_id FROM parsing_runs WHERE parsing_run_id = ?)`,
		store.RunStatusSuperseded, store.RunStatusSuccess, runID, runID)
	if err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: superseding: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE parsing_runs SET status = ?, finished_ts = ?, error_message = ''
		WHERE parsing_run_id = ?`,
		store.RunStatusSuccess, time.Now().UTC().Format(timestampLayout), runID)
	if err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("MarkParsingRunSucceeded: %s: %w", runID, store.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: commit: %w", err)
	}
	return nil
}

// GetParsingRun returns a run by id.
func (r *Repository) GetParsingRun(ctx context.Context, runID string) (*store.ParsingRun, error) {
	var (
		run             store.ParsingRun
		started         string
		finished, errMs *string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT parsing_run_id, file_id, started_ts, finished_ts, COALESCE(parser_type, ''),
		       COALESCE(parser_version, ''), COALESCE(status, ''), error_message
		FROM parsing_runs WHERE parsing_run_id = ?`, runID).
		Scan(&run.RunID, &run.FileID, &started, &finished, &run.ParserType, &run.ParserVersion, &run.Status, &errMs)
	if err != nil {
		return nil, fmt.Errorf("GetParsingRun: %s: %w", runID, err)
	}

	if run.StartedAt, err = time.Parse(timestampLayout, started); err != nil {
		return nil, fmt.Errorf("GetParsingRun: started_ts: %w", err)
	}
	if finished != nil {
		t, err := time.Parse(timestampLayout, *finished)
		if err != nil {
			return nil, fmt.Errorf("GetParsingRun: finished_ts: %w", err)
		}
		run.FinishedAt = &t
	}
	if errMs != nil {
		run.ErrorMessage = *errMs
	}
	return &run, nil
}
