// Package gcs reads objects from Google Cloud Storage.
package gcs

import (
	"context"
)

// ObjectFetcher downloads object bytes by gs:// URI.
// This interface enables mocking of storage in tests.
type ObjectFetcher interface {
	// FetchObject downloads the object at a gs://bucket/path URI.
	FetchObject(ctx context.Context, gcsURI string) ([]byte, error)
}
