package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	exchangeapp "github.com/autoparts/backend/internal/application/exchange"
	"github.com/google/uuid"
)

// Ensure MemoryObjectStore implements ObjectStore
var _ exchangeapp.ObjectStore = (*MemoryObjectStore)(nil)

// MemoryObjectStore is an in-memory implementation of the exchange staging
// area. Use it for development without an S3 backend and in tests; it
// mirrors the multipart semantics of the S3 adapter, including part ordering
// by part number.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	uploads map[string]*memoryUpload
}

type memoryObject struct {
	data       []byte
	modifiedAt time.Time
}

type memoryUpload struct {
	key   string
	parts map[int32][]byte
}

// NewMemoryObjectStore creates an empty in-memory object store
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string]memoryObject),
		uploads: make(map[string]*memoryUpload),
	}
}

// CreateMultipartUpload opens a multipart upload against the key
func (s *MemoryObjectStore) CreateMultipartUpload(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uploadID := uuid.NewString()
	s.uploads[uploadID] = &memoryUpload{
		key:   key,
		parts: make(map[int32][]byte),
	}
	return uploadID, nil
}

// UploadPart stores one part of an open upload
func (s *MemoryObjectStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int32, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	upload, ok := s.uploads[uploadID]
	if !ok || upload.key != key {
		return "", fmt.Errorf("no such upload %q for key %q", uploadID, key)
	}
	buf := make([]byte, len(body))
	copy(buf, body)
	upload.parts[partNumber] = buf
	return fmt.Sprintf("etag-%d", partNumber), nil
}

// CompleteMultipartUpload concatenates parts in ascending part-number order
func (s *MemoryObjectStore) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []exchangeapp.CompletedPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	upload, ok := s.uploads[uploadID]
	if !ok || upload.key != key {
		return fmt.Errorf("no such upload %q for key %q", uploadID, key)
	}

	ordered := make([]exchangeapp.CompletedPart, len(parts))
	copy(ordered, parts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })

	var buf bytes.Buffer
	for _, p := range ordered {
		data, ok := upload.parts[p.PartNumber]
		if !ok {
			return fmt.Errorf("upload %q is missing part %d", uploadID, p.PartNumber)
		}
		buf.Write(data)
	}

	s.objects[key] = memoryObject{data: buf.Bytes(), modifiedAt: time.Now()}
	delete(s.uploads, uploadID)
	return nil
}

// AbortMultipartUpload discards an open upload
func (s *MemoryObjectStore) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, uploadID)
	return nil
}

// Get opens the object for reading
func (s *MemoryObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such object %q", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Put stores an object in one call
func (s *MemoryObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(body))
	copy(buf, body)
	s.objects[key] = memoryObject{data: buf, modifiedAt: time.Now()}
	return nil
}

// LatestUnderPrefix returns the most recently stored key under the prefix
func (s *MemoryObjectStore) LatestUnderPrefix(ctx context.Context, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		latestKey string
		latest    time.Time
	)
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if latestKey == "" || obj.modifiedAt.After(latest) {
			latestKey = key
			latest = obj.modifiedAt
		}
	}
	return latestKey, nil
}

// OpenUploads reports the number of in-flight multipart uploads
func (s *MemoryObjectStore) OpenUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}
