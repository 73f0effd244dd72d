package sessions

import (
	"time"

	"github.com/jrsteele09/swishview/users"
)

// Session is a provider-backed sign-in. It is created on sign-in or sign-up and
// destroyed on sign-out or expiry of its refresh token.
type Session struct {
	ID           string          `json:"id"`            // Unique session identifier (UUID)
	Principal    users.Principal `json:"principal"`     // Identity this session authenticates
	AccessToken  string          `json:"access_token"`  // Signed JWT, short lived
	RefreshToken string          `json:"refresh_token"` // Opaque, exchanged for a new access token
	TokenExpiry  time.Time       `json:"token_expiry"`  // When the access token expires
	ExpiresAt    time.Time       `json:"expires_at"`    // When the refresh token expires
	CreatedAt    time.Time       `json:"created_at"`
}

// TokenExpired reports whether the access token needs a refresh.
func (s *Session) TokenExpired(now time.Time) bool {
	return !now.Before(s.TokenExpiry)
}

// Expired reports whether the session can no longer be refreshed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
