package usecase

import (
	"sync"
	"time"

	"github.com/vmalyshev/studycast/internal/core/domain"
	"github.com/vmalyshev/studycast/internal/core/ports"
	"github.com/vmalyshev/studycast/internal/core/rag"
)

// session is one live study session: its retrieval index plus the
// successful source records, retained so a model switch can replay them
// into a fresh index.
type session struct {
	id        string
	createdAt time.Time
	chunker   ports.Chunker

	mu      sync.RWMutex
	index   *rag.SessionIndex
	records []domain.DocumentRecord
}

func (s *session) currentIndex() *rag.SessionIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

func (r *registry) add(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *registry) get(id string) (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "lookup session", errIDNotFound(id))
	}
	return s, nil
}

// remove reports whether the session existed.
func (r *registry) remove(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	return s, ok
}

func (r *registry) snapshot() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
