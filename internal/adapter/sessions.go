package adapter

import (
	"context"
	"sync"
)

// SessionStore caches live adapter sessions between poll cycles so a
// controller does not reauthenticate on every poll.
//
// Sessions are keyed by SessionKey. Adapters are single-caller: every
// consumer must hold the key's lock (Acquire) from lookup through its
// last adapter call, because the poll, workflow, and sunlight jobs run
// on independent timers and can reach the same controller at once.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Adapter
	locks    map[string]*sync.Mutex
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]Adapter),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Acquire takes the per-key lock and returns its release func. Hold it
// across Get/Put and every call on the session; adapters keep
// per-connection state that is not safe for concurrent use.
func (s *SessionStore) Acquire(key string) (release func()) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// SessionKey derives the store key for a controller identity.
func SessionKey(brand, controllerID string) string {
	return brand + "/" + controllerID
}

// Get returns the cached session for a key, if present.
func (s *SessionStore) Get(key string) (Adapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.sessions[key]
	return a, ok
}

// Put caches a session under a key, replacing any previous entry.
// The caller is responsible for disconnecting a replaced session.
func (s *SessionStore) Put(key string, a Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[key] = a
}

// Drop removes and disconnects the session for a key.
// Returns the Disconnect error, if any; a missing key is not an error.
func (s *SessionStore) Drop(ctx context.Context, key string) error {
	s.mu.Lock()
	a, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return a.Disconnect(ctx)
}

// Close disconnects every cached session. Used during shutdown; errors
// from individual sessions are collected into the returned slice.
func (s *SessionStore) Close(ctx context.Context) []error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]Adapter)
	s.mu.Unlock()

	var errs []error
	for _, a := range sessions {
		if err := a.Disconnect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Len returns the number of cached sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}
