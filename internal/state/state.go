package state

import (
	"sync"
	"time"
)

// SessionRegistry tracks which users have a parsing run in flight. At most
// one active session per user; the entry is deleted, not flagged, when the
// run ends, so the next request starts from a clean slate.
type SessionRegistry interface {
	// TryAcquire atomically checks and inserts the user's active marker.
	// It returns false when a session is already running for that user.
	TryAcquire(userID int64) bool
	Release(userID int64)
	Active(userID int64) bool
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[int64]time.Time
}

func NewSessionRegistry() SessionRegistry {
	return &sessionRegistry{sessions: make(map[int64]time.Time)}
}

func (r *sessionRegistry) TryAcquire(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, active := r.sessions[userID]; active {
		return false
	}
	r.sessions[userID] = time.Now()
	return true
}

func (r *sessionRegistry) Release(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

func (r *sessionRegistry) Active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, active := r.sessions[userID]
	return active
}
