// Package blob defines the external blob store interface. File bytes
// live here; metadata lives in the hierarchy store. The two are written
// with no shared transaction, so callers compensate (delete the blob)
// when a metadata write fails after a successful put.
package blob

import (
	"context"
	"io"
)

// Store is the interface for blob storage backends.
type Store interface {
	// Put uploads content under the given key.
	Put(ctx context.Context, key string, body io.Reader, size int64) error

	// Get retrieves the content stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Delete removes the content stored under key. Deleting a missing
	// key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether content is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
