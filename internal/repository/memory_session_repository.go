package repository

import (
	"context"
	"sync"

	"github.com/fleetfox/fleetfox/pkg/domain"
)

// memorySessionRepo is an in-process SessionRepository used where no Redis is
// available, chiefly the CLI running against a local workflow.
type memorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*domain.UploadSession
	tasks    map[string]string
}

func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepo{
		sessions: make(map[string]*domain.UploadSession),
		tasks:    make(map[string]string),
	}
}

func (r *memorySessionRepo) Load(ctx context.Context, sessionID string) (*domain.UploadSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.NewUploadSession(sessionID), nil
	}
	cp := domain.NewUploadSession(sessionID)
	for slot, rec := range s.Images {
		cp.Images[slot] = rec
	}
	return cp, nil
}

func (r *memorySessionRepo) Save(ctx context.Context, session *domain.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := domain.NewUploadSession(session.ID)
	for slot, rec := range session.Images {
		cp.Images[slot] = rec
	}
	r.sessions[session.ID] = cp
	return nil
}

func (r *memorySessionRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *memorySessionRepo) BindTask(ctx context.Context, taskID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[taskID] = sessionID
	return nil
}

func (r *memorySessionRepo) TaskSession(ctx context.Context, taskID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tasks[taskID], nil
}
