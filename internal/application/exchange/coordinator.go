package exchange

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoSession is returned by Finalize when no upload session exists for
// the key. The protocol handler treats it as "already imported": every
// chunk upload auto-finalizes, so a well-behaved client's explicit import
// call usually arrives after the session was consumed.
var ErrNoSession = shared.NewDomainError("NO_UPLOAD_SESSION", "No upload session for this document")

// UploadCoordinator assembles chunked document uploads into immutable
// objects and hands off a typed job on finalize. Its session state is
// memory-resident and not crash-safe: Shutdown aborts every open multipart
// upload so the object store does not accumulate orphaned parts.
type UploadCoordinator struct {
	store     ObjectStore
	publisher JobPublisher
	registry  *SessionRegistry
	logger    *zap.Logger
	now       func() time.Time
}

// CoordinatorOption is a functional option for UploadCoordinator
type CoordinatorOption func(*UploadCoordinator)

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *UploadCoordinator) {
		c.now = now
	}
}

// NewUploadCoordinator creates a new UploadCoordinator
func NewUploadCoordinator(store ObjectStore, publisher JobPublisher, registry *SessionRegistry, logger *zap.Logger, opts ...CoordinatorOption) *UploadCoordinator {
	c := &UploadCoordinator{
		store:     store,
		publisher: publisher,
		registry:  registry,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// inboxKey derives the destination key for an upload. The fresh random
// segment keeps repeated filenames from colliding.
func (c *UploadCoordinator) inboxKey(filename string) string {
	return path.Join(
		"inbox",
		c.now().UTC().Format("2006/01/02"),
		uuid.NewString(),
		filename,
	)
}

// StoreChunk appends one chunk to the session for (docType, filename,
// requestID), opening the multipart upload on first use. Returns the
// destination object key.
func (c *UploadCoordinator) StoreChunk(ctx context.Context, docType exchange.DocType, filename string, body []byte, requestID string) (string, error) {
	key := sessionKey{docType: docType, filename: filename, requestID: requestID}
	session := c.registry.getOrCreate(key)

	session.mu.Lock()
	if !session.initialized {
		objectKey := c.inboxKey(filename)
		uploadID, err := c.store.CreateMultipartUpload(ctx, objectKey)
		if err != nil {
			session.mu.Unlock()
			return "", fmt.Errorf("failed to open upload for %q: %w", filename, err)
		}
		session.objectKey = objectKey
		session.uploadID = uploadID
		session.initialized = true

		c.logger.Info("upload session opened",
			zap.String("type", docType.String()),
			zap.String("filename", filename),
			zap.String("object_key", objectKey),
			zap.String("request_id", requestID),
		)
	}
	objectKey := session.objectKey
	uploadID := session.uploadID
	partNumber := session.nextPart
	session.nextPart++
	session.mu.Unlock()

	etag, err := c.store.UploadPart(ctx, objectKey, uploadID, partNumber, body)
	if err != nil {
		return "", fmt.Errorf("failed to store chunk %d of %q: %w", partNumber, filename, err)
	}

	session.mu.Lock()
	session.parts = append(session.parts, CompletedPart{PartNumber: partNumber, ETag: etag})
	session.mu.Unlock()

	return objectKey, nil
}

// Finalize completes the multipart upload for the session, classifies the
// document and submits the job to its queue. A second call for the same
// session returns ErrNoSession.
func (c *UploadCoordinator) Finalize(ctx context.Context, docType exchange.DocType, filename, requestID string) (string, error) {
	jobType, err := exchange.ResolveJobType(docType, filename)
	if err != nil {
		return "", err
	}

	key := sessionKey{docType: docType, filename: filename, requestID: requestID}
	session := c.registry.remove(key)
	if session == nil {
		return "", ErrNoSession
	}

	session.mu.Lock()
	objectKey := session.objectKey
	uploadID := session.uploadID
	parts := make([]CompletedPart, len(session.parts))
	copy(parts, session.parts)
	session.mu.Unlock()

	// The store requires ascending part numbers regardless of the order
	// chunks finished uploading in.
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	if err := c.store.CompleteMultipartUpload(ctx, objectKey, uploadID, parts); err != nil {
		return "", fmt.Errorf("failed to complete upload of %q: %w", filename, err)
	}

	job := exchange.NewJob(jobType, filename, objectKey, requestID)
	if err := c.publisher.Publish(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}

	c.logger.Info("upload finalized",
		zap.String("type", docType.String()),
		zap.String("job_type", jobType.String()),
		zap.String("object_key", objectKey),
		zap.String("request_id", requestID),
		zap.Int("parts", len(parts)),
	)
	return objectKey, nil
}

// Shutdown aborts every open upload session against the object store.
// Orphaned multipart parts are invisible and billable; they must not
// survive a process exit.
func (c *UploadCoordinator) Shutdown(ctx context.Context) {
	for _, session := range c.registry.drain() {
		session.mu.Lock()
		objectKey := session.objectKey
		uploadID := session.uploadID
		initialized := session.initialized
		session.mu.Unlock()

		if !initialized {
			continue
		}
		if err := c.store.AbortMultipartUpload(ctx, objectKey, uploadID); err != nil {
			c.logger.Warn("failed to abort upload session",
				zap.String("object_key", objectKey),
				zap.Error(err),
			)
			continue
		}
		c.logger.Info("upload session aborted", zap.String("object_key", objectKey))
	}
}
