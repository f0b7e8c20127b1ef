package memory

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kris96tian/MOFAX-Online/domain/core"
	"github.com/kris96tian/MOFAX-Online/domain/model"
)

type sessionEntry struct {
	model      *model.Model
	lastAccess time.Time
}

// SessionStore is an in-process ports.SessionRepository. Models that are
// replaced, deleted, expired or closed are handed to onRelease.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[core.SessionID]*sessionEntry
	ttl       time.Duration
	onRelease func(*model.Model)
	now       func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates a store whose entries expire after ttl of inactivity
func NewSessionStore(ttl time.Duration, onRelease func(*model.Model)) *SessionStore {
	if onRelease == nil {
		onRelease = func(*model.Model) {}
	}
	return &SessionStore{
		sessions:  make(map[core.SessionID]*sessionEntry),
		ttl:       ttl,
		onRelease: onRelease,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// Put stores m and returns the model previously held by the session
func (s *SessionStore) Put(ctx context.Context, id core.SessionID, m *model.Model) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var previous *model.Model
	if e, ok := s.sessions[id]; ok {
		previous = e.model
	}
	s.sessions[id] = &sessionEntry{model: m, lastAccess: s.now()}
	s.mu.Unlock()

	if previous != nil && previous != m {
		s.onRelease(previous)
	}
	return previous, nil
}

// Get returns the session's model and refreshes its expiry
func (s *SessionStore) Get(ctx context.Context, id core.SessionID) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrNoModelLoaded
	}
	e.lastAccess = s.now()
	return e.model, nil
}

// Delete removes the session's model
func (s *SessionStore) Delete(ctx context.Context, id core.SessionID) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	s.onRelease(e.model)
	return e.model, nil
}

// Len reports how many sessions hold a model
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many it dropped
func (s *SessionStore) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*model.Model
	for id, e := range s.sessions {
		if e.lastAccess.Before(cutoff) {
			expired = append(expired, e.model)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, m := range expired {
		s.onRelease(m)
	}
	return len(expired)
}

// StartJanitor sweeps expired sessions every interval until Close
func (s *SessionStore) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Printf("[SessionStore] Expired %d idle sessions", n)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Close stops the janitor and releases every model
func (s *SessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	all := make([]*model.Model, 0, len(s.sessions))
	for _, e := range s.sessions {
		all = append(all, e.model)
	}
	s.sessions = make(map[core.SessionID]*sessionEntry)
	s.mu.Unlock()

	for _, m := range all {
		s.onRelease(m)
	}
	return nil
}
