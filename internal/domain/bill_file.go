package domain

import "time"

// Parsing states of an uploaded bill file.
const (
	BillStatusPending = "PENDING"
	BillStatusParsed  = "PARSED"
	BillStatusFailed  = "FAILED"
)

// BillFile records where an uploaded export came from and where it is stored.
// Storage keeps it alongside, never inside, the entries parsed from it.
type BillFile struct {
	FileID           string    `json:"file_id"`
	OriginalFilename string    `json:"original_filename"`
	SourceType       string    `json:"source_type"`
	StoragePath      string    `json:"storage_path"`
	UploadedAt       time.Time `json:"uploaded_at"`
	Checksum         string    `json:"checksum_sha256,omitempty"`
	Status           string    `json:"status"`
	EntryCount       int       `json:"entry_count"`
}
