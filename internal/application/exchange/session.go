package exchange

import (
	"sync"

	"github.com/autoparts/backend/internal/domain/exchange"
)

// sessionKey identifies one in-flight chunked upload
type sessionKey struct {
	docType   exchange.DocType
	filename  string
	requestID string
}

// UploadSession tracks one open multipart upload. At most one session
// exists per key; concurrent chunk writes to the same session serialize
// part-number assignment through the session mutex.
type UploadSession struct {
	mu          sync.Mutex
	objectKey   string
	uploadID    string
	initialized bool
	nextPart    int32
	parts       []CompletedPart
}

// SessionRegistry is the only process-local shared mutable state of the
// exchange pipeline. It is owned by the coordinator and injected, never
// global.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*UploadSession
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[sessionKey]*UploadSession),
	}
}

// getOrCreate returns the session for the key, creating it on first use.
// The returned session may not be initialized yet; initialization happens
// under the session's own lock so the registry lock never covers I/O.
func (r *SessionRegistry) getOrCreate(key sessionKey) *UploadSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := &UploadSession{nextPart: 1}
	r.sessions[key] = s
	return s
}

// remove detaches the session for the key, or nil when none exists
func (r *SessionRegistry) remove(key sessionKey) *UploadSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[key]
	if !ok {
		return nil
	}
	delete(r.sessions, key)
	return s
}

// drain detaches and returns every open session
func (r *SessionRegistry) drain() []*UploadSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*UploadSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.sessions = make(map[sessionKey]*UploadSession)
	return out
}

// Len reports the number of open sessions
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
