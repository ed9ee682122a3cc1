package storage

import (
	"context"
	"io"
)

// ObjectStorage is the sink artifacts can be mirrored to after they are
// written locally and recorded in the manifest.
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error
}
