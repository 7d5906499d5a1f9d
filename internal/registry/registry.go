// Package registry implements the in-memory table of currently resident
// model sessions keyed by (model_path, model_type). Mutation is confined to
// the Executor goroutine (spec.md §3); the RWMutex below exists only so that
// the HTTP status server's Snapshot call — running on a different goroutine
// — never observes a half-written entry, not to serialize writers among
// themselves.
package registry

import (
	"encoding/json"
	"sync"
	"time"
)

// Key identifies a model session uniquely.
type Key struct {
	ModelPath string
	ModelType string
}

// Session is a loaded model on the device.
type Session struct {
	Key         Key
	LoadedAt    time.Time
	LastUsed    time.Time
	ModelParams json.RawMessage
	// Backend holds the backend-specific runtime object. It is never copied
	// out through Snapshot — only the Executor and the Device Adapter ever
	// see it.
	Backend any
}

// Entry is a read-only copy-out of a Session for status/ping responses.
// It deliberately excludes Backend.
type Entry struct {
	ModelType string    `json:"model_type"`
	ModelPath string    `json:"model_path"`
	LoadedAt  time.Time `json:"loaded_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Registry is the mapping (model_path, model_type) -> *Session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sessions: make(map[Key]*Session)}
}

// Get returns the session for key, if resident.
func (r *Registry) Get(key Key) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Insert adds a new session. Callers are expected to have already checked
// Get for idempotence (spec.md §4.2's replace policy: a load_model for an
// already-present key is handled by the caller returning success without
// calling Insert again).
func (r *Registry) Insert(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.Key] = sess
}

// Remove deletes and returns the session for key, if present, so the caller
// can release its backend resources.
func (r *Registry) Remove(key Key) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	return s, ok
}

// Touch updates a session's last_used timestamp. Called after every
// successful infer against that session.
func (r *Registry) Touch(key Key, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		s.LastUsed = at
	}
}

// Snapshot returns a consistent, backend-free copy of every resident
// session. Safe to call from any goroutine without coordinating with the
// Executor (spec.md §4.6, Testable Property 7).
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, Entry{
			ModelType: s.Key.ModelType,
			ModelPath: s.Key.ModelPath,
			LoadedAt:  s.LoadedAt,
			LastUsed:  s.LastUsed,
		})
	}
	return out
}

// All returns every resident session (including its Backend handle) for the
// Executor's own use during shutdown drain. Not exposed to status readers.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of resident sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
