package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound reports that no blob exists under the requested id.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidID reports an id that is not a canonical UUID.
	ErrInvalidID = errors.New("invalid blob id")
)

// PutResult describes one persisted payload.
type PutResult struct {
	BlobID    string
	SizeBytes int64
	Digest    string
}

// BlobInfo describes a stored payload without reading it.
type BlobInfo struct {
	BlobID    string
	SizeBytes int64
	ModTime   time.Time
}

// BlobStore is the payload storage used by RecordService.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (PutResult, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Stat(ctx context.Context, id string) (BlobInfo, error)
	List(ctx context.Context) ([]BlobInfo, error)
}
