// Package bigquery is the warehouse implementation of store.Repository.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/store"
)

const (
	billFilesTable   = "bill_files"
	entriesTable     = "ledger_entries"
	parsingRunsTable = "parsing_runs"
)

// Target names the project and dataset holding the ledger tables.
type Target struct {
	ProjectID string
	DatasetID string
}

// table returns the fully qualified, backquoted table name for SQL.
func (t Target) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.DatasetID, name)
}

// Repository is the concrete store.Repository backed by BigQuery. It holds a
// shared client for the lifetime of the process.
type Repository struct {
	client *bigquery.Client
	target Target
}

var _ store.Repository = (*Repository)(nil)

// NewRepository creates a BigQuery client for target.ProjectID.
func NewRepository(ctx context.Context, target Target) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, target.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, target: target}, nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, target Target) *Repository {
	return &Repository{client: client, target: target}
}

// Client exposes the underlying client, e.g. for migrations.
func (r *Repository) Client() *bigquery.Client {
	return r.client
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertBillFile delegates to InsertBillFileWithClient.
func (r *Repository) InsertBillFile(ctx context.Context, f *domain.BillFile) error {
	return InsertBillFileWithClient(ctx, r.client, r.target, f)
}

// UpdateBillFileStatus delegates to UpdateBillFileStatusWithClient.
func (r *Repository) UpdateBillFileStatus(ctx context.Context, fileID, status string, entryCount int) error {
	return UpdateBillFileStatusWithClient(ctx, r.client, r.target, fileID, status, entryCount)
}

// GetBillFile delegates to GetBillFileWithClient.
func (r *Repository) GetBillFile(ctx context.Context, fileID string) (*domain.BillFile, error) {
	return GetBillFileWithClient(ctx, r.client, r.target, fileID)
}

// ListBillFiles delegates to ListBillFilesWithClient.
func (r *Repository) ListBillFiles(ctx context.Context) ([]*domain.BillFile, error) {
	return ListBillFilesWithClient(ctx, r.client, r.target)
}

// FindBillFileByChecksum delegates to FindBillFileByChecksumWithClient.
func (r *Repository) FindBillFileByChecksum(ctx context.Context, checksum string) (*domain.BillFile, error) {
	return FindBillFileByChecksumWithClient(ctx, r.client, r.target, checksum)
}

// InsertEntries delegates to InsertEntriesWithClient.
func (r *Repository) InsertEntries(ctx context.Context, rows []*store.EntryRecord) error {
	return InsertEntriesWithClient(ctx, r.client, r.target, rows)
}

// QueryEntriesByDateRange delegates to QueryEntriesByDateRangeWithClient.
func (r *Repository) QueryEntriesByDateRange(ctx context.Context, start, end time.Time) ([]*store.EntryRecord, error) {
	return QueryEntriesByDateRangeWithClient(ctx, r.client, r.target, start, end)
}

// StartParsingRun delegates to StartParsingRunWithClient.
func (r *Repository) StartParsingRun(ctx context.Context, fileID, parserType string) (string, error) {
	return StartParsingRunWithClient(ctx, r.client, r.target, fileID, parserType)
}

// MarkParsingRunFailed delegates to MarkParsingRunFailedWithClient.
func (r *Repository) MarkParsingRunFailed(ctx context.Context, runID string, parseErr error) {
	MarkParsingRunFailedWithClient(ctx, r.client, r.target, runID, parseErr)
}

// MarkParsingRunSucceeded delegates to MarkParsingRunSucceededWithClient.
func (r *Repository) MarkParsingRunSucceeded(ctx context.Context, runID string) error {
	return MarkParsingRunSucceededWithClient(ctx, r.client, r.target, runID)
}

// runQuery runs a DML or DDL statement and waits for it to finish.
func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
