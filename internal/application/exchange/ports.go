// Package exchange implements the application services behind the 1C
// exchange protocol: chunked upload staging, queued document imports, order
// change application and order export.
package exchange

import (
	"context"
	"io"

	"github.com/autoparts/backend/internal/domain/exchange"
)

// CompletedPart describes one uploaded part of a multipart upload
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// ObjectStore is the staging area for exchange documents. Implemented by
// the S3 adapter in infrastructure/storage; an in-memory implementation
// backs tests and single-node development.
type ObjectStore interface {
	CreateMultipartUpload(ctx context.Context, key string) (uploadID string, err error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body []byte) (etag string, err error)
	// CompleteMultipartUpload assembles the object. Parts must be submitted
	// in ascending part-number order.
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error

	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// LatestUnderPrefix returns the key of the most recently modified object
	// under the prefix, or "" when the prefix is empty.
	LatestUnderPrefix(ctx context.Context, prefix string) (string, error)
}

// JobPublisher submits exchange jobs to their per-purpose queues
type JobPublisher interface {
	Publish(ctx context.Context, job exchange.Job) error
}

// IdempotencyLedger is the exactly-once gate consulted before shared order
// state is mutated. Insert uniqueness is the source of truth.
type IdempotencyLedger interface {
	// TryAcquire returns true exactly once per (key, category) across any
	// number of concurrent callers.
	TryAcquire(ctx context.Context, key, category string) (bool, error)
}
