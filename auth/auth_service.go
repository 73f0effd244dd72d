package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/sessions"
	"github.com/jrsteele09/swishview/token"
	"github.com/jrsteele09/swishview/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	providerEmail     = "email"
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Repos holds all repository dependencies for the AuthService
type Repos struct {
	Users    users.UserRepo // Repository for user data
	Sessions sessions.Repo  // Repository for session data
}

// AuthService is the server side of the auth provider: it owns users and sessions
// and issues the tokens carried by a Session.
type AuthService struct {
	repos      Repos
	tokens     *token.Manager
	refreshTTL time.Duration
	oauth      map[string]*OAuthProvider
	nowTime    func() time.Time
}

// AuthServiceOption defines a function type to modify the AuthService instance.
type AuthServiceOption func(*AuthService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthServiceOption {
	return func(as *AuthService) {
		as.nowTime = nowFunc
	}
}

func WithRefreshTTL(ttl time.Duration) AuthServiceOption {
	return func(as *AuthService) {
		if ttl > 0 {
			as.refreshTTL = ttl
		}
	}
}

// WithOAuthProvider registers a federated sign-in provider under its name.
func WithOAuthProvider(p *OAuthProvider) AuthServiceOption {
	return func(as *AuthService) {
		if p != nil {
			as.oauth[p.Name] = p
		}
	}
}

// NewAuthService initializes a new AuthService with required dependencies.
func NewAuthService(repos Repos, tokens *token.Manager, options ...AuthServiceOption) (*AuthService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAuthService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthService] Sessions repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthService] token manager is required")
	}

	as := &AuthService{
		repos:      repos,
		tokens:     tokens,
		refreshTTL: defaultRefreshTTL,
		oauth:      make(map[string]*OAuthProvider),
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(as)
	}
	return as, nil
}

// SignIn checks email/password credentials and opens a new session.
func (as *AuthService) SignIn(ctx context.Context, email, password string) (*sessions.Session, error) {
	email = strings.TrimSpace(email)
	user, err := as.repos.Users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.NewAuthError("sign-in", apperrors.ErrInvalidCredentials)
		}
		return nil, apperrors.NewAuthError("sign-in", errors.Wrap(err, "[AuthService.SignIn] GetByEmail"))
	}
	if user.PasswordHash == "" || !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.NewAuthError("sign-in", apperrors.ErrInvalidCredentials)
	}
	return as.openSession(user)
}

// SignUp registers an email/password user and signs them straight in.
func (as *AuthService) SignUp(ctx context.Context, email, password string, profile users.Profile) (*sessions.Session, error) {
	email = strings.TrimSpace(email)
	if err := users.ValidateEmail(email); err != nil {
		return nil, apperrors.NewAuthError("sign-up", err)
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, apperrors.NewAuthError("sign-up", err)
	}
	if _, err := as.repos.Users.GetByEmail(email); err == nil {
		return nil, apperrors.NewAuthError("sign-up", apperrors.ErrUserExists)
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, apperrors.NewAuthError("sign-up", errors.Wrap(err, "[AuthService.SignUp] HashPassword"))
	}
	user := &users.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(profile.FullName),
		Provider:     providerEmail,
		DateJoined:   as.nowTime(),
	}
	if err := as.repos.Users.Upsert(user); err != nil {
		return nil, apperrors.NewAuthError("sign-up", errors.Wrap(err, "[AuthService.SignUp] Users.Upsert"))
	}
	log.Info().Str("user_id", user.ID).Msg("user signed up")
	return as.openSession(user)
}

// Lookup returns the stored session, deleting it when its refresh window has ended.
func (as *AuthService) Lookup(ctx context.Context, sessionID string) (*sessions.Session, error) {
	s, err := as.repos.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.Expired(as.nowTime()) {
		_ = as.repos.Sessions.Delete(sessionID)
		return nil, apperrors.ErrSessionExpired
	}
	return s, nil
}

// Refresh rotates the refresh token and issues a new access token.
func (as *AuthService) Refresh(ctx context.Context, refreshToken string) (*sessions.Session, error) {
	s, err := as.repos.Sessions.GetByRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.NewAuthError("refresh", apperrors.ErrInvalidRefreshToken)
	}
	if s.Expired(as.nowTime()) {
		_ = as.repos.Sessions.Delete(s.ID)
		return nil, apperrors.NewAuthError("refresh", apperrors.ErrSessionExpired)
	}
	if err := as.issueTokens(s); err != nil {
		return nil, apperrors.NewAuthError("refresh", err)
	}
	if err := as.repos.Sessions.Upsert(s); err != nil {
		return nil, apperrors.NewAuthError("refresh", errors.Wrap(err, "[AuthService.Refresh] Sessions.Upsert"))
	}
	return s, nil
}

// SignOut destroys the session. Unknown sessions are not an error.
func (as *AuthService) SignOut(ctx context.Context, sessionID string) error {
	if err := as.repos.Sessions.Delete(sessionID); err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
		return errors.Wrap(err, "[AuthService.SignOut] Sessions.Delete")
	}
	return nil
}

// VerifyAccessToken resolves a bearer token to its live session.
func (as *AuthService) VerifyAccessToken(ctx context.Context, raw string) (*sessions.Session, error) {
	claims, err := as.tokens.ParseAccessToken(raw)
	if err != nil {
		return nil, apperrors.NewAuthError("verify", err)
	}
	s, err := as.Lookup(ctx, claims.SessionID)
	if err != nil {
		return nil, apperrors.NewAuthError("verify", err)
	}
	return s, nil
}

// CleanupExpiredSessions removes sessions that can no longer be refreshed
func (as *AuthService) CleanupExpiredSessions() error {
	return as.repos.Sessions.DeleteExpiredSessions(as.nowTime())
}

func (as *AuthService) openSession(user *users.User) (*sessions.Session, error) {
	now := as.nowTime()
	s := &sessions.Session{
		ID:        uuid.New().String(),
		Principal: user.Principal(),
		CreatedAt: now,
		ExpiresAt: now.Add(as.refreshTTL),
	}
	if err := as.issueTokens(s); err != nil {
		return nil, apperrors.NewAuthError("sign-in", err)
	}
	if err := as.repos.Sessions.Upsert(s); err != nil {
		return nil, apperrors.NewAuthError("sign-in", errors.Wrap(err, "[AuthService.openSession] Sessions.Upsert"))
	}
	if err := as.repos.Users.SetLastLogin(user.ID); err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}
	return s, nil
}

func (as *AuthService) issueTokens(s *sessions.Session) error {
	access, expiry, err := as.tokens.IssueAccessToken(s.Principal, s.ID)
	if err != nil {
		return err
	}
	refresh, err := token.NewRefreshToken()
	if err != nil {
		return err
	}
	s.AccessToken = access
	s.TokenExpiry = expiry
	s.RefreshToken = refresh
	return nil
}
