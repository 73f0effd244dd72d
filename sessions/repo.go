package sessions

import "time"

// Repo defines the interface for session storage operations.
type Repo interface {
	// Upsert creates or updates a session
	Upsert(session *Session) error

	// Get retrieves a session by ID
	Get(sessionID string) (*Session, error)

	// GetByRefreshToken retrieves the session owning a refresh token
	GetByRefreshToken(refreshToken string) (*Session, error)

	// Delete removes a session by ID
	Delete(sessionID string) error

	// DeleteExpiredSessions removes sessions whose refresh window ended before expiryTime
	DeleteExpiredSessions(expiryTime time.Time) error
}
