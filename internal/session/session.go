// Package session keeps the pipeline state of each map session in memory.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/observability"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/pipeline"
)

var ErrUnknownSession = errors.New("unknown session")

// Session serialises every transition of one state.
type Session struct {
	ID      string
	Created time.Time

	mu    sync.Mutex
	state pipeline.State
}

// Snapshot returns the current state. States are immutable, so the caller
// may read it without holding the lock.
func (s *Session) Snapshot() pipeline.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies fn to the current state. The result replaces the state
// only when fn succeeds; the error is returned unchanged.
func (s *Session) Update(fn func(pipeline.State) (pipeline.State, error)) (pipeline.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.state)
	if err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}

// Registry holds at most max sessions; the least recently used one is
// dropped when a new session would exceed it.
type Registry struct {
	sessions *lru.Cache[string, *Session]
	now      func() time.Time
}

func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = 1024
	}
	c, _ := lru.New[string, *Session](max)
	return &Registry{sessions: c, now: time.Now}
}

func (r *Registry) Create() *Session {
	s := &Session{
		ID:      uuid.NewString(),
		Created: r.now(),
		state:   pipeline.Empty(),
	}
	r.sessions.Add(s.ID, s)
	observability.SetSessionsActive(r.sessions.Len())
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.sessions.Get(id)
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Remove forgets a session and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	ok := r.sessions.Remove(id)
	observability.SetSessionsActive(r.sessions.Len())
	return ok
}

func (r *Registry) Len() int { return r.sessions.Len() }
