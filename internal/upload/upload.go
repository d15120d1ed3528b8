package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/onebook-ledger/internal/domain"
	"github.com/dvloznov/onebook-ledger/internal/logger"
	"github.com/google/uuid"
)

// GenerateUniqueFilename appends the upload time to the base name:
// "bill.csv" uploaded at 2025-01-05 10:15:00 becomes "bill_20250105_101500.csv".
func GenerateUniqueFilename(original string, now time.Time) string {
	base := filepath.Base(original)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%s%s", name, now.Format("20060102_150405"), ext)
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Uploader stores incoming bill files and describes them as pending
// BillFiles. It does not persist the description.
type Uploader struct {
	Storage StorageService
	Now     func() time.Time
}

// NewUploader returns an Uploader writing to s.
func NewUploader(s StorageService) *Uploader {
	return &Uploader{Storage: s, Now: time.Now}
}

// Upload saves content under a unique name and returns the pending record.
func (u *Uploader) Upload(ctx context.Context, originalFilename, sourceType string, content []byte) (*domain.BillFile, error) {
	log := logger.FromContext(ctx)

	if len(content) == 0 {
		return nil, fmt.Errorf("Upload: %s: empty file", originalFilename)
	}

	now := u.Now()
	name := GenerateUniqueFilename(originalFilename, now)
	storagePath, err := u.Storage.Save(ctx, name, content)
	if err != nil {
		return nil, fmt.Errorf("Upload: %w", err)
	}

	f := &domain.BillFile{
		FileID:           uuid.NewString(),
		OriginalFilename: filepath.Base(originalFilename),
		SourceType:       sourceType,
		StoragePath:      storagePath,
		UploadedAt:       now.UTC(),
		Checksum:         Checksum(content),
		Status:           domain.BillStatusPending,
	}

	log.Info().
		Str("file_id", f.FileID).
		Str("source_type", sourceType).
		Str("storage_path", storagePath).
		Int("bytes", len(content)).
		Msg("Upload: bill file stored")

	return f, nil
}

// Materialize returns a local path holding the file at storagePath. Local
// files are used in place; remote ones are copied to a temporary file with
// the same extension, which cleanup removes.
func Materialize(ctx context.Context, s StorageService, storagePath string) (localPath string, cleanup func(), err error) {
	noop := func() {}
	if !strings.HasPrefix(storagePath, "gs://") {
		if _, err := os.Stat(storagePath); err == nil {
			return storagePath, noop, nil
		}
	}

	data, err := s.Fetch(ctx, storagePath)
	if err != nil {
		return "", noop, fmt.Errorf("Materialize: %w", err)
	}

	tmp, err := os.CreateTemp("", "onebook-*"+filepath.Ext(FilenameFromPath(storagePath)))
	if err != nil {
		return "", noop, fmt.Errorf("Materialize: creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", noop, fmt.Errorf("Materialize: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", noop, fmt.Errorf("Materialize: closing temp file: %w", err)
	}

	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}
