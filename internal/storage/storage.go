// Package storage defines the interface for artifact blob storage.
// Implementations live in the local, memory and gcs subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject when no object exists at a path.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore persists named artifacts and reads them back.
type BlobStore interface {
	// PutObject writes r to path and returns a URI that identifies the object.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	// GetObject returns the bytes stored at path or an error wrapping ErrObjectNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
