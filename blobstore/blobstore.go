// Package blobstore abstracts where dataset files live: a local directory
// or an S3-compatible object store. The clustering engine never touches
// it; only the dataset loader and the CLI do.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and writing immutable dataset blobs.
type Store interface {
	// Open opens a blob for reading. The caller must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Put writes a blob whole, replacing any previous content.
	Put(ctx context.Context, name string, r io.Reader, size int64) error
}
