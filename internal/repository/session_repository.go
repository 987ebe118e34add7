package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
)

// SessionRepository keeps workflow sessions in memory for the life of the
// process. Sessions are never shared: each id owns its own aggregate.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*WorkflowSession
	profile  CompanyProfile
}

// NewSessionRepository creates a store whose new sessions start with profile.
func NewSessionRepository(profile CompanyProfile) *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*WorkflowSession),
		profile:  profile,
	}
}

// Create starts a new session and returns its view.
func (r *SessionRepository) Create() *WorkflowSessionView {
	session := NewWorkflowSession(uuid.Must(uuid.NewV7()).String(), r.profile)

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	return session.View()
}

// Get returns a snapshot of the session.
func (r *SessionRepository) Get(id string) (*WorkflowSessionView, error) {
	var view *WorkflowSessionView
	err := r.Do(id, func(s *WorkflowSession) error {
		view = s.View()
		return nil
	})
	return view, err
}

// Do runs fn with exclusive access to the session. Actions against the same
// session are serialized; different sessions run independently. If fn
// returns an error the caller is responsible for not having mutated s.
func (r *SessionRepository) Do(id string, fn func(s *WorkflowSession) error) error {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return errors.NotFound("session", id)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if err := fn(session); err != nil {
		return err
	}
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete discards a session.
func (r *SessionRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return errors.NotFound("session", id)
	}
	delete(r.sessions, id)
	return nil
}

// Count is the number of live sessions.
func (r *SessionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
