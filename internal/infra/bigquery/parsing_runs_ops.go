package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"github.com/google/uuid"
)

// StartParsingRunWithClient inserts a RUNNING row into parsing_runs and
// returns the generated parsing_run_id.
func StartParsingRunWithClient(ctx context.Context, client *bigquery.Client, t Target, fileID, parserType string) (string, error) {
	row := ParsingRunRow{
		ParsingRunID:  uuid.NewString(),
		FileID:        fileID,
		StartedTS:     time.Now(),
		ParserType:    parserType,
		ParserVersion: store.ParserVersion,
		Status:        store.RunStatusRunning,
	}

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			parsing_run_id,
			file_id,
			started_ts,
			parser_type,
			parser_version,
			status
		)
		VALUES (
			@parsing_run_id,
			@file_id,
			@started_ts,
			@parser_type,
			@parser_version,
			@status
		)
	`, t.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: row.ParsingRunID},
		{Name: "file_id", Value: row.FileID},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "parser_type", Value: row.ParserType},
		{Name: "parser_version", Value: row.ParserVersion},
		{Name: "status", Value: row.Status},
	}

	if err := runQuery(ctx, q); err != nil {
		return "", fmt.Errorf("StartParsingRun: %w", err)
	}
	return row.ParsingRunID, nil
}

// MarkParsingRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures are logged since the caller is already handling
// an error.
func MarkParsingRunFailedWithClient(ctx context.Context, client *bigquery.Client, t Target, runID string, parseErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE parsing_run_id = @parsing_run_id
	`, t.table(parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: store.RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: store.TruncateError(parseErr)},
		{Name: "parsing_run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("parsing_run_id", runID).
			Msg("MarkParsingRunFailed: update failed")
	}
}

// MarkParsingRunSucceededWithClient supersedes earlier successful runs of the
// same file, then sets status=SUCCESS and finished_ts on runID.
func MarkParsingRunSucceededWithClient(ctx context.Context, client *bigquery.Client, t Target, runID string) error {
	table := t.table(parsingRunsTable)

	supersede := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @superseded
		WHERE status = @success
		  AND parsing_run_id != @parsing_run_id
		  AND file_id = (SELECT file_id FROM %s WHERE parsing_run_id = @parsing_run_id)
	`, table, table))
	supersede.Parameters = []bigquery.QueryParameter{
		{Name: "superseded", Value: store.RunStatusSuperseded},
		{Name: "success", Value: store.RunStatusSuccess},
		{Name: "parsing_run_id", Value: runID},
	}
	if err := runQuery(ctx, supersede); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: superseding earlier runs: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = ""
		WHERE parsing_run_id = @parsing_run_id
	`, table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: store.RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "parsing_run_id", Value: runID},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}
	return nil
}
