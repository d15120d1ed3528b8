// Package store defines the persistence contract for bill files, parsed
// entries and parsing runs. Implementations live under internal/infra.
package store

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/onebook-ledger/internal/domain"
)

// Parsing run states.
const (
	RunStatusRunning    = "RUNNING"
	RunStatusSuccess    = "SUCCESS"
	RunStatusFailed     = "FAILED"
	RunStatusSuperseded = "SUPERSEDED"
)

// ParserVersion is recorded on every parsing run.
const ParserVersion = "v1"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// EntryRecord is a parsed entry together with where it came from.
type EntryRecord struct {
	EntryID      string `json:"entry_id"`
	FileID       string `json:"file_id"`
	ParsingRunID string `json:"parsing_run_id"`
	LineNo       int    `json:"line_no"`

	domain.Entry

	CreatedAt time.Time `json:"created_at"`
}

// ParsingRun is one attempt at turning a bill file into entries.
type ParsingRun struct {
	RunID         string     `json:"parsing_run_id"`
	FileID        string     `json:"file_id"`
	ParserType    string     `json:"parser_type"`
	ParserVersion string     `json:"parser_version"`
	Status        string     `json:"status"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// BillFileRepository persists bill file provenance.
type BillFileRepository interface {
	// InsertBillFile stores a new bill file record.
	InsertBillFile(ctx context.Context, f *domain.BillFile) error

	// UpdateBillFileStatus sets the parsing status and entry count of a file.
	UpdateBillFileStatus(ctx context.Context, fileID, status string, entryCount int) error

	// GetBillFile returns ErrNotFound when fileID is unknown.
	GetBillFile(ctx context.Context, fileID string) (*domain.BillFile, error)

	// ListBillFiles returns every file, newest upload first.
	ListBillFiles(ctx context.Context) ([]*domain.BillFile, error)

	// FindBillFileByChecksum returns nil when no file has the checksum.
	FindBillFileByChecksum(ctx context.Context, checksum string) (*domain.BillFile, error)
}

// EntryRepository persists parsed entries.
type EntryRepository interface {
	// InsertEntries stores a batch of entries.
	InsertEntries(ctx context.Context, rows []*EntryRecord) error

	// QueryEntriesByDateRange returns entries dated within [start, end] by
	// calendar day that belong to a successful parsing run, oldest first.
	QueryEntriesByDateRange(ctx context.Context, start, end time.Time) ([]*EntryRecord, error)
}

// ParsingRunRepository tracks parsing attempts.
type ParsingRunRepository interface {
	// StartParsingRun records a RUNNING run and returns its id.
	StartParsingRun(ctx context.Context, fileID, parserType string) (string, error)

	// MarkParsingRunFailed records the failure. Errors are logged, not returned.
	MarkParsingRunFailed(ctx context.Context, runID string, parseErr error)

	// MarkParsingRunSucceeded sets the run to SUCCESS and supersedes earlier
	// successful runs of the same file.
	MarkParsingRunSucceeded(ctx context.Context, runID string) error
}

// Repository is the full storage contract used by ingestion and the API.
type Repository interface {
	BillFileRepository
	EntryRepository
	ParsingRunRepository

	Close() error
}

// MaxErrorMessageLen bounds stored parsing error messages.
const MaxErrorMessageLen = 2000

// TruncateError returns the error text limited to MaxErrorMessageLen bytes,
// cut on a rune boundary.
func TruncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	n := MaxErrorMessageLen
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
