package fakesessionrepo

import (
	"sync"
	"time"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]*sessions.Session
	refresh  map[string]string // refresh token to sessionID
	lock     sync.RWMutex
}

func NewFakeSessionRepo() sessions.Repo {
	return &FakeSessionRepo{
		sessions: make(map[string]*sessions.Session),
		refresh:  make(map[string]string),
	}
}

func (sr *FakeSessionRepo) Upsert(session *sessions.Session) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if old, ok := sr.sessions[session.ID]; ok && old.RefreshToken != session.RefreshToken {
		delete(sr.refresh, old.RefreshToken)
	}
	stored := *session
	sr.sessions[session.ID] = &stored
	if session.RefreshToken != "" {
		sr.refresh[session.RefreshToken] = session.ID
	}
	return nil
}

func (sr *FakeSessionRepo) Get(sessionID string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	s, ok := sr.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (sr *FakeSessionRepo) GetByRefreshToken(refreshToken string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	id, ok := sr.refresh[refreshToken]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	out := *sr.sessions[id]
	return &out, nil
}

func (sr *FakeSessionRepo) Delete(sessionID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	s, ok := sr.sessions[sessionID]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	delete(sr.refresh, s.RefreshToken)
	delete(sr.sessions, sessionID)
	return nil
}

func (sr *FakeSessionRepo) DeleteExpiredSessions(expiryTime time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	for id, s := range sr.sessions {
		if s.ExpiresAt.Before(expiryTime) {
			delete(sr.refresh, s.RefreshToken)
			delete(sr.sessions, id)
		}
	}
	return nil
}
