package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/store"
	"google.golang.org/api/iterator"
)

const billFileColumns = `
			file_id,
			original_filename,
			source_type,
			storage_path,
			uploaded_ts,
			checksum_sha256,
			status,
			entry_count`

// InsertBillFileWithClient inserts one bill file with a DML statement so the
// row is immediately visible to UpdateBillFileStatusWithClient.
func InsertBillFileWithClient(ctx context.Context, client *bigquery.Client, t Target, f *domain.BillFile) error {
	row := billFileToRow(f)

	q := client.Query(fmt.Sprintf(`
		INSERT %s (%s
		)
		VALUES (
			@file_id,
			@original_filename,
			@source_type,
			@storage_path,
			@uploaded_ts,
			@checksum_sha256,
			@status,
			@entry_count
		)
	`, t.table(billFilesTable), billFileColumns))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "file_id", Value: row.FileID},
		{Name: "original_filename", Value: row.OriginalFilename},
		{Name: "source_type", Value: row.SourceType},
		{Name: "storage_path", Value: row.StoragePath},
		{Name: "uploaded_ts", Value: row.UploadedTS},
		{Name: "checksum_sha256", Value: row.ChecksumSHA256},
		{Name: "status", Value: row.Status},
		{Name: "entry_count", Value: row.EntryCount},
	}

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("InsertBillFile: %w", err)
	}
	return nil
}

// UpdateBillFileStatusWithClient sets status and entry_count.
func UpdateBillFileStatusWithClient(ctx context.Context, client *bigquery.Client, t Target, fileID, status string, entryCount int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    entry_count = @entry_count
		WHERE file_id = @file_id
	`, t.table(billFilesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "entry_count", Value: entryCount},
		{Name: "file_id", Value: fileID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpdateBillFileStatus: running update query: %w", err)
	}
	js, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpdateBillFileStatus: waiting for job: %w", err)
	}
	if err := js.Err(); err != nil {
		return fmt.Errorf("UpdateBillFileStatus: job error: %w", err)
	}
	if stats, ok := js.Statistics.Details.(*bigquery.QueryStatistics); ok && stats.NumDMLAffectedRows == 0 {
		return fmt.Errorf("UpdateBillFileStatus: %s: %w", fileID, store.ErrNotFound)
	}
	return nil
}

// GetBillFileWithClient returns store.ErrNotFound when fileID is unknown.
func GetBillFileWithClient(ctx context.Context, client *bigquery.Client, t Target, fileID string) (*domain.BillFile, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE file_id = @file_id
		LIMIT 1
	`, billFileColumns, t.table(billFilesTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "file_id", Value: fileID}}

	row, err := readOneBillFile(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetBillFile: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("GetBillFile: %s: %w", fileID, store.ErrNotFound)
	}
	return row, nil
}

// ListBillFilesWithClient returns every bill file, newest upload first.
func ListBillFilesWithClient(ctx context.Context, client *bigquery.Client, t Target) ([]*domain.BillFile, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY uploaded_ts DESC
	`, billFileColumns, t.table(billFilesTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBillFiles: reading query: %w", err)
	}

	var files []*domain.BillFile
	for {
		var row BillFileRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBillFiles: iterating: %w", err)
		}
		files = append(files, row.toDomain())
	}
	return files, nil
}

// FindBillFileByChecksumWithClient returns nil if no file has the checksum.
func FindBillFileByChecksumWithClient(ctx context.Context, client *bigquery.Client, t Target, checksum string) (*domain.BillFile, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE checksum_sha256 = @checksum
		ORDER BY uploaded_ts
		LIMIT 1
	`, billFileColumns, t.table(billFilesTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "checksum", Value: checksum}}

	f, err := readOneBillFile(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindBillFileByChecksum: %w", err)
	}
	return f, nil
}

func readOneBillFile(ctx context.Context, q *bigquery.Query) (*domain.BillFile, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}
	var row BillFileRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading row: %w", err)
	}
	return row.toDomain(), nil
}
