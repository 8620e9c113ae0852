package importapp

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines the object storage operations the import pipeline
// and the document endpoints need. Implemented by the infrastructure layer
// (S3 or any S3-compatible backend).
type ObjectStorage interface {
	// Upload streams a file body to storage under the given key.
	Upload(ctx context.Context, storageKey string, body io.Reader, contentType string) error

	// GenerateDownloadURL generates a presigned URL for downloading a stored
	// file. Returns the download URL and its expiration time.
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// DeleteObject deletes an object from storage.
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectExists checks if an object exists in storage.
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}
