package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/store"
)

const billFileColumns = `file_id, COALESCE(original_filename, ''), source_type, storage_path, uploaded_ts,
	COALESCE(checksum_sha256, ''), COALESCE(status, ''), entry_count`

// InsertBillFile stores a new bill file record.
func (r *Repository) InsertBillFile(ctx context.Context, f *domain.BillFile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bill_files (file_id, original_filename, source_type, storage_path, uploaded_ts, checksum_sha256, status, entry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FileID, f.OriginalFilename, f.SourceType, f.StoragePath,
		f.UploadedAt.UTC().Format(timestampLayout), f.Checksum, f.Status, f.EntryCount)
	if err != nil {
		return fmt.Errorf("InsertBillFile: %w", err)
	}
	return nil
}

// UpdateBillFileStatus sets the parsing status and entry count of a file.
func (r *Repository) UpdateBillFileStatus(ctx context.Context, fileID, status string, entryCount int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bill_files SET status = ?, entry_count = ? WHERE file_id = ?`, status, entryCount, fileID)
	if err != nil {
		return fmt.Errorf("UpdateBillFileStatus: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("UpdateBillFileStatus: %s: %w", fileID, store.ErrNotFound)
	}
	return nil
}

// GetBillFile returns store.ErrNotFound when fileID is unknown.
func (r *Repository) GetBillFile(ctx context.Context, fileID string) (*domain.BillFile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+billFileColumns+` FROM bill_files WHERE file_id = ?`, fileID)
	f, err := scanBillFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetBillFile: %s: %w", fileID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetBillFile: %w", err)
	}
	return f, nil
}

// ListBillFiles returns every file, newest upload first.
func (r *Repository) ListBillFiles(ctx context.Context) ([]*domain.BillFile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+billFileColumns+` FROM bill_files ORDER BY uploaded_ts DESC`)
	if err != nil {
		return nil, fmt.Errorf("ListBillFiles: %w", err)
	}
	defer rows.Close()

	var files []*domain.BillFile
	for rows.Next() {
		f, err := scanBillFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ListBillFiles: scanning: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FindBillFileByChecksum returns nil when no file has the checksum.
func (r *Repository) FindBillFileByChecksum(ctx context.Context, checksum string) (*domain.BillFile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billFileColumns+` FROM bill_files WHERE checksum_sha256 = ? ORDER BY uploaded_ts LIMIT 1`, checksum)
	f, err := scanBillFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindBillFileByChecksum: %w", err)
	}
	return f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBillFile(s scanner) (*domain.BillFile, error) {
	var (
		f        domain.BillFile
		uploaded string
	)
	if err := s.Scan(&f.FileID, &f.OriginalFilename, &f.SourceType, &f.StoragePath, &uploaded,
		&f.Checksum, &f.Status, &f.EntryCount); err != nil {
		return nil, err
	}
	t, err := time.Parse(timestampLayout, uploaded)
	if err != nil {
		return nil, fmt.Errorf("uploaded_ts %q: %w", uploaded, err)
	}
	f.UploadedAt = t
	return &f, nil
}
