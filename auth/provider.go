package auth

import (
	"context"

	"github.com/jrsteele09/swishview/sessions"
	"github.com/jrsteele09/swishview/users"
)

// EventType names a session-change notification pushed by the provider.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Listener receives session-change notifications. session is nil for EventSignedOut.
type Listener func(event EventType, session *sessions.Session)

// Unsubscribe detaches a Listener. It is safe to call more than once.
type Unsubscribe func()

// Provider is the auth contract consumed by the session manager.
type Provider interface {
	GetCurrentSession(ctx context.Context) (*sessions.Session, error)
	Subscribe(listener Listener) Unsubscribe
	SignIn(ctx context.Context, email, password string) (*sessions.Session, error)
	SignUp(ctx context.Context, email, password string, profile users.Profile) (*sessions.Session, error)
	SignOut(ctx context.Context) error
	// SignInWithOAuth returns the URL the visitor must be redirected to.
	SignInWithOAuth(ctx context.Context, provider string) (string, error)
}
