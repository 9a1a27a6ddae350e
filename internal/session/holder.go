// Package session holds the process-local view of "who is logged in":
// an in-memory holder for the current session projection and a durable
// single-record slot that lets a session survive restarts.
package session

import (
	"sync"

	"veritas/internal/users"
)

// Holder is a single-owner cache of the current session. It is the only
// place the current session lives; callers get a copy and cannot mutate
// the cached value in place.
type Holder struct {
	mu   sync.RWMutex
	sess *users.Session
}

func NewHolder() *Holder {
	return &Holder{}
}

// Set replaces the cached session.
func (h *Holder) Set(s *users.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s == nil {
		h.sess = nil
		return
	}
	cp := *s
	h.sess = &cp
}

// Get returns a copy of the cached session, or nil when logged out.
func (h *Holder) Get() *users.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.sess == nil {
		return nil
	}
	cp := *h.sess
	return &cp
}

// Clear drops the cached session. Idempotent.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess = nil
}
