package token

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/users"
	"github.com/pkg/errors"
)

const (
	defaultIssuer      = "swishview"
	refreshTokenLength = 32 // 32 bytes = 256 bits
)

// Claims carried by a session access token.
type Claims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() users.Principal {
	return users.Principal{ID: c.Subject, Email: c.Email}
}

type Manager struct {
	secret            []byte
	issuer            string
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// New creates an HS256 token manager. An empty secret is rejected.
func New(secret []byte, options ...ManagerOption) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("[token.New] signing secret is required")
	}
	m := &Manager{
		secret:            secret,
		issuer:            defaultIssuer,
		accessTokenExpiry: time.Hour,
		nowFunc:           time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

func (m *Manager) AccessTokenExpiry() time.Duration {
	return m.accessTokenExpiry
}

// IssueAccessToken signs an access token for the principal within a session.
func (m *Manager) IssueAccessToken(p users.Principal, sessionID string) (string, time.Time, error) {
	now := m.nowFunc()
	expiry := now.Add(m.accessTokenExpiry)
	claims := Claims{
		Email:     p.Email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "[Manager.IssueAccessToken] sign")
	}
	return signed, expiry, nil
}

// ParseAccessToken verifies signature, issuer and expiry.
func (m *Manager) ParseAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, errors.Wrap(apperrors.ErrInvalidToken, err.Error())
	}
	return claims, nil
}

// NewRefreshToken returns an opaque random refresh token.
func NewRefreshToken() (string, error) {
	b := make([]byte, refreshTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[NewRefreshToken] rand.Read")
	}
	return hex.EncodeToString(b), nil
}
