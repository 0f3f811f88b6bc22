// Package session holds the per-learner state of a tutoring walk through a plan.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	"github.com/kailas-cloud/lessontutor/internal/domain/vector"
)

// Session is one learner's position in a lesson. Fields other than ID,
// LessonID, Plan and Index must only be touched between Lock and Unlock.
type Session struct {
	mu sync.Mutex

	ID       string
	LessonID string
	Plan     plan.Plan
	Index    *vector.Index

	Cursor  plan.Cursor
	Started bool

	lastSeen atomic.Int64
}

// New creates a session at the first micro-section.
func New(id, lessonID string, p plan.Plan, idx *vector.Index, now time.Time) *Session {
	s := &Session{ID: id, LessonID: lessonID, Plan: p, Index: idx}
	s.Touch(now)
	return s
}

// Lock serializes state machine operations on the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch records activity at now.
func (s *Session) Touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// LastSeen returns the time of the last recorded activity.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Done reports whether the cursor has moved past the last micro-section.
func (s *Session) Done() bool { return s.Plan.Exhausted(s.Cursor) }
