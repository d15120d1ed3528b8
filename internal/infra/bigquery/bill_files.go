package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/onebook-ledger/internal/domain"
)

type BillFileRow struct {
	FileID           string `bigquery:"file_id"`           // REQUIRED
	OriginalFilename string `bigquery:"original_filename"` // NULLABLE
	SourceType       string `bigquery:"source_type"`       // REQUIRED
	StoragePath      string `bigquery:"storage_path"`      // REQUIRED

	UploadedTS time.Time `bigquery:"uploaded_ts"` // REQUIRED

	ChecksumSHA256 bigquery.NullString `bigquery:"checksum_sha256"` // NULLABLE
	Status         bigquery.NullString `bigquery:"status"`          // NULLABLE
	EntryCount     bigquery.NullInt64  `bigquery:"entry_count"`     // NULLABLE
}

func billFileToRow(f *domain.BillFile) *BillFileRow {
	return &BillFileRow{
		FileID:           f.FileID,
		OriginalFilename: f.OriginalFilename,
		SourceType:       f.SourceType,
		StoragePath:      f.StoragePath,
		UploadedTS:       f.UploadedAt,
		ChecksumSHA256:   bigquery.NullString{StringVal: f.Checksum, Valid: f.Checksum != ""},
		Status:           bigquery.NullString{StringVal: f.Status, Valid: f.Status != ""},
		EntryCount:       bigquery.NullInt64{Int64: int64(f.EntryCount), Valid: true},
	}
}

func (r *BillFileRow) toDomain() *domain.BillFile {
	return &domain.BillFile{
		FileID:           r.FileID,
		OriginalFilename: r.OriginalFilename,
		SourceType:       r.SourceType,
		StoragePath:      r.StoragePath,
		UploadedAt:       r.UploadedTS,
		Checksum:         r.ChecksumSHA256.StringVal,
		Status:           r.Status.StringVal,
		EntryCount:       int(r.EntryCount.Int64),
	}
}
