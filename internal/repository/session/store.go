// Package session keeps live tutoring sessions in process memory.
package session

import (
	"sync"
	"time"

	"github.com/kailas-cloud/lessontutor/internal/domain/session"
	"github.com/kailas-cloud/lessontutor/internal/metrics"
)

// MemoryStore is a concurrency-safe map of sessions keyed by id.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*session.Session)}
}

// Get returns the session for id.
func (m *MemoryStore) Get(id string) (*session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Put stores s under id, replacing any previous session.
func (m *MemoryStore) Put(id string, s *session.Session) {
	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SessionsActive.Set(float64(n))
}

// Remove deletes the session for id and reports whether it existed.
func (m *MemoryStore) Remove(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SessionsActive.Set(float64(n))
	return ok
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than ttl at now and returns how
// many were evicted. A non-positive ttl keeps everything.
func (m *MemoryStore) Sweep(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > ttl {
			delete(m.sessions, id)
			evicted++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SessionsActive.Set(float64(n))
	return evicted
}
