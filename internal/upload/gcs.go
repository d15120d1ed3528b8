package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStorage keeps files in a Cloud Storage bucket under an optional prefix.
// It uses Application Default Credentials.
type GCSStorage struct {
	Bucket string
	Prefix string
}

// NewGCSStorage returns storage for bucket with objects under prefix.
func NewGCSStorage(bucket, prefix string) *GCSStorage {
	return &GCSStorage{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}
}

// Save uploads content and returns its gs:// URI.
func (s *GCSStorage) Save(ctx context.Context, name string, content []byte) (string, error) {
	object := path.Join(s.Prefix, path.Base(name))
	if err := UploadBytes(ctx, s.Bucket, object, content); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.Bucket, object), nil
}

// Fetch downloads the object at a gs:// URI.
func (s *GCSStorage) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	return FetchFromGCS(ctx, storagePath)
}

// UploadBytes writes content to bucketName/objectName.
func UploadBytes(ctx context.Context, bucketName, objectName string, content []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(content)); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy bill file to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// ParseGCSURI splits gs://bucket/object into its bucket and object path.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	bucket, object, found := strings.Cut(strings.TrimPrefix(uri, "gs://"), "/")
	if !found || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return bucket, object, nil
}

// FetchFromGCS downloads the file bytes from the given GCS URI.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}
	return data, nil
}

// FilenameFromPath returns the last element of a gs:// URI or local path.
// e.g., "gs://bucket/bills/wechat.csv" → "wechat.csv"
func FilenameFromPath(p string) string {
	if _, object, err := ParseGCSURI(p); err == nil {
		return path.Base(object)
	}
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}
