// Package storage abstracts the blob side of the backend: writing objects
// under namespaced paths and serving them through short-lived signed URLs.
package storage

import (
	"context"
	"io"
)

// ObjectStore writes and reads blobs by path.
type ObjectStore interface {
	Put(ctx context.Context, path string, contents io.Reader) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
