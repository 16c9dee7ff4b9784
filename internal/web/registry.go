package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileRegistry hands out opaque refs for local files so that clients never
// address the filesystem directly. Refs not used within the sweep age are
// dropped by Sweep; the files themselves are left alone.
type FileRegistry struct {
	mu     sync.Mutex
	refs   map[string]*fileRef
	byPath map[string]string
	now    func() time.Time
}

type fileRef struct {
	path     string
	lastUsed time.Time
}

// NewFileRegistry creates an empty registry
func NewFileRegistry() *FileRegistry {
	return &FileRegistry{
		refs:   make(map[string]*fileRef),
		byPath: make(map[string]string),
		now:    time.Now,
	}
}

// Register returns the ref for path, creating one if needed. "" maps to "".
func (r *FileRegistry) Register(path string) string {
	if path == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.byPath[path]; ok {
		r.refs[ref].lastUsed = r.now()
		return ref
	}
	ref := uuid.NewString()
	r.refs[ref] = &fileRef{path: path, lastUsed: r.now()}
	r.byPath[path] = ref
	return ref
}

// Resolve returns the path registered under ref
func (r *FileRegistry) Resolve(ref string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.refs[ref]
	if !ok {
		return "", false
	}
	entry.lastUsed = r.now()
	return entry.path, true
}

// Sweep drops refs unused for longer than maxAge and returns how many were dropped
func (r *FileRegistry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxAge)
	dropped := 0
	for ref, entry := range r.refs {
		if entry.lastUsed.Before(cutoff) {
			delete(r.refs, ref)
			delete(r.byPath, entry.path)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of registered refs
func (r *FileRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}

// Sessions tracks the in-flight run of every browser session. Starting a run
// cancels the one it supersedes.
type Sessions struct {
	mu   sync.Mutex
	runs map[string]*sessionRun
}

type sessionRun struct {
	cancel context.CancelFunc
}

// NewSessions creates an empty session table
func NewSessions() *Sessions {
	return &Sessions{runs: make(map[string]*sessionRun)}
}

// Begin starts a run for session id and returns its context and a release func
// that must be called when the run ends
func (s *Sessions) Begin(parent context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	run := &sessionRun{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.runs[id]; ok {
		prev.cancel()
	}
	s.runs[id] = run
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.runs[id] == run {
			delete(s.runs, id)
		}
		s.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Active returns the number of sessions with a run in flight
func (s *Sessions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
