// Package upload stores uploaded bill files under unique names, locally or in
// Cloud Storage, and materializes them again for the loader.
package upload

import (
	"context"
	"strings"
)

// StorageService stores and retrieves bill file bytes by storage path.
type StorageService interface {
	// Save stores content under name and returns its storage path.
	Save(ctx context.Context, name string, content []byte) (string, error)

	// Fetch returns the bytes stored at storagePath.
	Fetch(ctx context.Context, storagePath string) ([]byte, error)
}

// NewStorage picks the backend from location: "gs://bucket/prefix" selects
// Cloud Storage, anything else is a local directory.
func NewStorage(location string) StorageService {
	if strings.HasPrefix(location, "gs://") {
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(location, "gs://"), "/")
		return NewGCSStorage(bucket, prefix)
	}
	return NewLocalStorage(location)
}
