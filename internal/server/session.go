package server

import (
	"sync"
	"time"

	"repricer/internal"
)

// SessionStore keeps each browser session's last run artifacts in
// memory so downloads survive page reloads. A new run replaces the
// session's whole set.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string]sessionEntry
	ttl     time.Duration
}

type sessionEntry struct {
	artifacts []internal.Artifact
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{entries: map[string]sessionEntry{}, ttl: ttl}
}

func (s *SessionStore) Put(sessionID string, artifacts []internal.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.entries[sessionID] = sessionEntry{artifacts: artifacts, expiresAt: now.Add(s.ttl)}
}

func (s *SessionStore) Get(sessionID, name string) (internal.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[sessionID]
	if !ok || time.Now().After(entry.expiresAt) {
		return internal.Artifact{}, false
	}
	for _, artifact := range entry.artifacts {
		if artifact.Name == name {
			return artifact, true
		}
	}
	return internal.Artifact{}, false
}
