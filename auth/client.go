package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/sessions"
	"github.com/jrsteele09/swishview/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var _ Provider = (*Client)(nil)

// Client is one visitor's handle on the AuthService. It tracks the visitor's current
// session and pushes session-change notifications to its subscribers.
type Client struct {
	svc *AuthService

	lock         sync.Mutex
	current      *sessions.Session
	listeners    map[int]Listener
	nextListener int
	oauthStates  map[string]string // state -> provider name
}

func NewClient(svc *AuthService) *Client {
	return &Client{
		svc:         svc,
		listeners:   make(map[int]Listener),
		oauthStates: make(map[string]string),
	}
}

// GetCurrentSession returns the visitor's live session, refreshing an expired access
// token on the way. It returns nil when nobody is signed in.
func (c *Client) GetCurrentSession(ctx context.Context) (*sessions.Session, error) {
	c.lock.Lock()
	cur := c.current
	c.lock.Unlock()
	if cur == nil {
		return nil, nil
	}

	s, err := c.svc.Lookup(ctx, cur.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) || errors.Is(err, apperrors.ErrSessionExpired) {
			c.drop(cur.ID)
			return nil, nil
		}
		return nil, apperrors.NewAuthError("get-session", err)
	}
	if !s.TokenExpired(c.svc.nowTime()) {
		return s, nil
	}

	refreshed, err := c.svc.Refresh(ctx, s.RefreshToken)
	if err != nil {
		log.Err(err).Str("session_id", s.ID).Msg("session refresh failed")
		c.drop(cur.ID)
		return nil, nil
	}
	if c.replace(cur.ID, refreshed) {
		c.emit(EventTokenRefreshed, refreshed)
	}
	return refreshed, nil
}

func (c *Client) Subscribe(listener Listener) Unsubscribe {
	c.lock.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = listener
	c.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.lock.Lock()
			delete(c.listeners, id)
			c.lock.Unlock()
		})
	}
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*sessions.Session, error) {
	s, err := c.svc.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.signedIn(ctx, s)
	return s, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, profile users.Profile) (*sessions.Session, error) {
	s, err := c.svc.SignUp(ctx, email, password, profile)
	if err != nil {
		return nil, err
	}
	c.signedIn(ctx, s)
	return s, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.lock.Lock()
	cur := c.current
	c.current = nil
	c.lock.Unlock()
	if cur == nil {
		return nil
	}
	if err := c.svc.SignOut(ctx, cur.ID); err != nil {
		log.Err(err).Str("session_id", cur.ID).Msg("provider sign-out failed")
	}
	c.emit(EventSignedOut, nil)
	return nil
}

func (c *Client) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", apperrors.NewAuthError("oauth", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	url, err := c.svc.AuthCodeURL(provider, state)
	if err != nil {
		return "", err
	}
	c.lock.Lock()
	c.oauthStates[state] = provider
	c.lock.Unlock()
	return url, nil
}

// CompleteOAuth finishes a redirect started by SignInWithOAuth on this client.
func (c *Client) CompleteOAuth(ctx context.Context, state, code string) (*sessions.Session, error) {
	c.lock.Lock()
	provider, ok := c.oauthStates[state]
	delete(c.oauthStates, state)
	c.lock.Unlock()
	if !ok {
		return nil, apperrors.NewAuthError("oauth", apperrors.ErrInvalidState)
	}

	s, err := c.svc.CompleteOAuth(ctx, provider, code)
	if err != nil {
		return nil, err
	}
	c.signedIn(ctx, s)
	return s, nil
}

func (c *Client) signedIn(ctx context.Context, s *sessions.Session) {
	c.lock.Lock()
	prev := c.current
	c.current = s
	c.lock.Unlock()
	if prev != nil && prev.ID != s.ID {
		_ = c.svc.SignOut(ctx, prev.ID)
	}
	c.emit(EventSignedIn, s)
}

// drop clears the current session if it is still sessionID, then notifies.
func (c *Client) drop(sessionID string) {
	c.lock.Lock()
	if c.current == nil || c.current.ID != sessionID {
		c.lock.Unlock()
		return
	}
	c.current = nil
	c.lock.Unlock()
	c.emit(EventSignedOut, nil)
}

func (c *Client) replace(sessionID string, s *sessions.Session) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.current == nil || c.current.ID != sessionID {
		return false
	}
	c.current = s
	return true
}

func (c *Client) emit(event EventType, s *sessions.Session) {
	c.lock.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.lock.Unlock()

	for _, l := range listeners {
		l(event, s)
	}
}
