package stor

import (
	"fmt"
	"sync"

	"github.com/snapify/snapify/pkg/model"
)

// InMemorySessionStor holds the active upload sessions for a single-process
// deployment. It is injected rather than being a package-level singleton so
// tests get isolated instances.
type InMemorySessionStor struct {
	mu       sync.Mutex
	sessions map[string]*model.UploadSession
}

func NewInMemorySessionStor() *InMemorySessionStor {
	return &InMemorySessionStor{sessions: make(map[string]*model.UploadSession)}
}

func (s *InMemorySessionStor) CreateSession(session *model.UploadSession) (*model.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return nil, fmt.Errorf("session already exists: %s", session.ID)
	}

	s.sessions[session.ID] = session
	return session, nil
}

func (s *InMemorySessionStor) GetSessionByID(id string) (*model.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session: %s", id)
	}

	return session, nil
}

func (s *InMemorySessionStor) SaveSession(session *model.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return fmt.Errorf("no such session: %s", session.ID)
	}

	s.sessions[session.ID] = session
	return nil
}

func (s *InMemorySessionStor) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *InMemorySessionStor) ListSessions() []*model.UploadSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*model.UploadSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}
