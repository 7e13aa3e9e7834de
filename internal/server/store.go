package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/boxheat-cli/internal/pipeline"
)

// entry is one session. mu serializes every request touching it.
type entry struct {
	mu       sync.Mutex
	id       string
	name     string
	session  *pipeline.Session
	lastUsed time.Time
}

// store holds sessions in memory and evicts them after an idle TTL.
type store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	now      func() time.Time
}

func newStore(ttl time.Duration) *store {
	return &store{sessions: map[string]*entry{}, ttl: ttl, now: time.Now}
}

// Create registers a new empty session.
func (s *store) Create() *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	e := &entry{id: uuid.NewString(), session: pipeline.NewSession(), lastUsed: now}
	s.sessions[e.id] = e
	return e
}

// Get returns the live session for id and marks it used.
func (s *store) Get(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	e, ok := s.sessions[id]
	if ok {
		e.lastUsed = now
	}
	return e, ok
}

// Delete drops a session; it reports whether the session existed.
func (s *store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Sweep evicts idle sessions and returns how many were removed.
func (s *store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *store) sweepLocked(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	n := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastUsed) > s.ttl {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
