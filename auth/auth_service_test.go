package auth_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/swishview/auth"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/sessions"
	fakesessionrepo "github.com/jrsteele09/swishview/sessions/repofakes"
	"github.com/jrsteele09/swishview/token"
	"github.com/jrsteele09/swishview/users"
	fakeuserrepo "github.com/jrsteele09/swishview/users/repofake"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testUserEmail    = "user@example.com"
	testUserPassword = "Password123"
	testIssuer       = "https://issuer.test"
	testClientID     = "client-1"
)

// testClock is a settable time source shared by the service and the token manager.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testFixture holds all test dependencies
type testFixture struct {
	clock       *testClock
	userRepo    users.UserRepo
	sessionRepo sessions.Repo
	service     *auth.AuthService
}

func setupTestFixture(t *testing.T, options ...auth.AuthServiceOption) *testFixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := token.New([]byte("test-secret"), token.WithNowFunc(clock.Now), token.WithAccessTokenExpiry(time.Hour))
	require.NoError(t, err)

	ur := fakeuserrepo.NewFakeUserRepo()
	sr := fakesessionrepo.NewFakeSessionRepo()
	opts := append([]auth.AuthServiceOption{auth.WithNowTime(clock.Now), auth.WithRefreshTTL(24 * time.Hour)}, options...)
	svc, err := auth.NewAuthService(auth.Repos{Users: ur, Sessions: sr}, tokens, opts...)
	require.NoError(t, err)

	return &testFixture{clock: clock, userRepo: ur, sessionRepo: sr, service: svc}
}

func (f *testFixture) signUp(t *testing.T) *sessions.Session {
	t.Helper()
	s, err := f.service.SignUp(context.Background(), testUserEmail, testUserPassword, users.Profile{FullName: " Jane Doe "})
	require.NoError(t, err)
	return s
}

func TestNewAuthServiceRequiresDependencies(t *testing.T) {
	tokens, err := token.New([]byte("x"))
	require.NoError(t, err)

	_, err = auth.NewAuthService(auth.Repos{Sessions: fakesessionrepo.NewFakeSessionRepo()}, tokens)
	require.Error(t, err)
	_, err = auth.NewAuthService(auth.Repos{Users: fakeuserrepo.NewFakeUserRepo()}, tokens)
	require.Error(t, err)
	_, err = auth.NewAuthService(auth.Repos{Users: fakeuserrepo.NewFakeUserRepo(), Sessions: fakesessionrepo.NewFakeSessionRepo()}, nil)
	require.Error(t, err)
}

func TestSignUpOpensSession(t *testing.T) {
	f := setupTestFixture(t)
	s := f.signUp(t)

	require.Equal(t, testUserEmail, s.Principal.Email)
	require.NotEmpty(t, s.Principal.ID)
	require.NotEmpty(t, s.AccessToken)
	require.NotEmpty(t, s.RefreshToken)

	user, err := f.userRepo.GetByEmail(testUserEmail)
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", user.FullName)
	require.Equal(t, "email", user.Provider)

	verified, err := f.service.VerifyAccessToken(context.Background(), s.AccessToken)
	require.NoError(t, err)
	require.Equal(t, s.ID, verified.ID)
}

func TestSignUpRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	_, err := f.service.SignUp(context.Background(), testUserEmail, testUserPassword, users.Profile{})
	require.True(t, apperrors.IsAuthError(err))
	require.ErrorIs(t, err, apperrors.ErrUserExists)

	_, err = f.service.SignUp(context.Background(), "other@example.com", "weak", users.Profile{})
	require.True(t, apperrors.IsAuthError(err))

	_, err = f.service.SignUp(context.Background(), "not-an-email", testUserPassword, users.Profile{})
	require.True(t, apperrors.IsAuthError(err))
}

func TestSignIn(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	s, err := f.service.SignIn(context.Background(), testUserEmail, testUserPassword)
	require.NoError(t, err)
	require.Equal(t, testUserEmail, s.Principal.Email)

	_, err = f.service.SignIn(context.Background(), testUserEmail, "WrongPassword1")
	require.True(t, apperrors.IsAuthError(err))
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.service.SignIn(context.Background(), "nobody@example.com", testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := setupTestFixture(t)
	s := f.signUp(t)

	f.clock.Advance(2 * time.Hour)
	refreshed, err := f.service.Refresh(context.Background(), s.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, s.ID, refreshed.ID)
	require.NotEqual(t, s.RefreshToken, refreshed.RefreshToken)
	require.True(t, refreshed.TokenExpiry.After(f.clock.Now()))

	_, err = f.service.Refresh(context.Background(), s.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestLookupExpiredSession(t *testing.T) {
	f := setupTestFixture(t)
	s := f.signUp(t)

	f.clock.Advance(25 * time.Hour)
	_, err := f.service.Lookup(context.Background(), s.ID)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)

	_, err = f.sessionRepo.Get(s.ID)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestUnknownOAuthProvider(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.AuthCodeURL("github", "state")
	require.ErrorIs(t, err, apperrors.ErrProviderNotAvailable)
}

// newTestOAuthProvider serves a token endpoint that returns an RS256 ID token for email.
func newTestOAuthProvider(t *testing.T, clock *testClock, email string) *auth.OAuthProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := clock.Now()
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":            testIssuer,
			"aud":            testClientID,
			"sub":            "google-123",
			"email":          email,
			"email_verified": true,
			"name":           "OAuth User",
			"iat":            now.Unix(),
			"exp":            now.Add(time.Hour).Unix(),
		}).SignedString(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(srv.Close)

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return &auth.OAuthProvider{
		Name: auth.ProviderGoogle,
		Config: &oauth2.Config{
			ClientID:     testClientID,
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
			RedirectURL:  "http://localhost:8080/auth/callback",
		},
		Verifier: oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testClientID, Now: clock.Now}),
		AuthParams: []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		},
	}
}

func TestOAuthSignInCreatesUser(t *testing.T) {
	clock := &testClock{now: time.Now()}
	provider := newTestOAuthProvider(t, clock, "oauth@example.com")
	f := setupTestFixture(t, auth.WithOAuthProvider(provider))

	redirect, err := f.service.AuthCodeURL(auth.ProviderGoogle, "state-1")
	require.NoError(t, err)
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	require.Equal(t, "offline", u.Query().Get("access_type"))
	require.Equal(t, "consent", u.Query().Get("prompt"))
	require.Equal(t, "state-1", u.Query().Get("state"))

	s, err := f.service.CompleteOAuth(context.Background(), auth.ProviderGoogle, "code-1")
	require.NoError(t, err)
	require.Equal(t, "oauth@example.com", s.Principal.Email)

	user, err := f.userRepo.GetByEmail("oauth@example.com")
	require.NoError(t, err)
	require.Equal(t, auth.ProviderGoogle, user.Provider)
	require.Empty(t, user.PasswordHash)

	// the OAuth user has no password, so password sign-in must fail
	_, err = f.service.SignIn(context.Background(), "oauth@example.com", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}
