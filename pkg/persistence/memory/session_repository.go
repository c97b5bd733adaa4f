package memory

import (
	"context"
	"sort"
	"time"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// SessionRepository is the in-memory session store with optimistic
// concurrency on StateVersion.
type SessionRepository struct {
	store *Persistence
}

func (r *SessionRepository) ActiveSessionByConversation(_ context.Context, conversationID string) (*models.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, s := range r.store.sessions {
		if s.ConversationID == conversationID && s.IsActive {
			return copySession(s), nil
		}
	}

	return nil, persistence.NewSessionError("ActiveSessionByConversation", conversationID, persistence.ErrSessionNotFound)
}

func (r *SessionRepository) SessionByID(_ context.Context, id string) (*models.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.sessions[id]
	if !ok {
		return nil, persistence.NewSessionError("SessionByID", "", persistence.ErrSessionNotFound)
	}

	return copySession(s), nil
}

func (r *SessionRepository) CreateSession(_ context.Context, session *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, s := range r.store.sessions {
		if s.ConversationID == session.ConversationID && s.IsActive {
			return persistence.NewSessionError("CreateSession", session.ConversationID, persistence.ErrActiveSessionExists)
		}
	}

	session.StateVersion = 1
	session.UpdatedAt = r.store.now()
	r.store.sessions[session.ID] = copySession(session)

	return nil
}

// UpdateSession compares-and-swaps on StateVersion: the write succeeds only
// when the caller's version matches the stored one, and bumps both.
func (r *SessionRepository) UpdateSession(_ context.Context, session *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.sessions[session.ID]
	if !ok {
		return persistence.NewSessionError("UpdateSession", session.ConversationID, persistence.ErrSessionNotFound)
	}

	if stored.StateVersion != session.StateVersion {
		return persistence.NewSessionError("UpdateSession", session.ConversationID, persistence.ErrSessionConflict)
	}

	session.StateVersion++
	session.UpdatedAt = r.store.now()
	r.store.sessions[session.ID] = copySession(session)

	return nil
}

func (r *SessionRepository) StaleAwaitingSessions(_ context.Context, cutoff time.Time) ([]*models.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*models.Session

	for _, s := range r.store.sessions {
		if s.IsActive && s.State == models.SessionAwaitingInput && s.UpdatedAt.Before(cutoff) {
			out = append(out, copySession(s))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}
