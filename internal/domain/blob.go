package domain

import (
	"context"
	"io"
	"time"
)

// ArchiveObject is one uploaded batch of events.
type ArchiveObject struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// ObjectStore is the bucket that holds archived event batches. Metadata
// travels with the object (user-defined S3 metadata).
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string, meta map[string]string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ArchiveObject, error)
}
