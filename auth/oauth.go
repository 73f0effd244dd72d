package auth

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/sessions"
	"github.com/jrsteele09/swishview/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const ProviderGoogle = "google"

// OAuthProvider is a federated sign-in provider verified through OpenID Connect.
type OAuthProvider struct {
	Name       string
	Config     *oauth2.Config
	Verifier   *oidc.IDTokenVerifier
	AuthParams []oauth2.AuthCodeOption
}

// NewGoogleProvider discovers the Google OIDC endpoints. Offline access with forced
// consent is requested so a refresh token is always issued.
func NewGoogleProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*OAuthProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[NewGoogleProvider] oidc.NewProvider")
	}
	return &OAuthProvider{
		Name: ProviderGoogle,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		Verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		AuthParams: []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		},
	}, nil
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// AuthCodeURL builds the redirect into the named provider.
func (as *AuthService) AuthCodeURL(providerName, state string) (string, error) {
	p, ok := as.oauth[providerName]
	if !ok {
		return "", apperrors.NewAuthError("oauth", apperrors.ErrProviderNotAvailable)
	}
	return p.Config.AuthCodeURL(state, p.AuthParams...), nil
}

// CompleteOAuth exchanges the authorization code, verifies the ID token and opens a
// session for the verified email, creating the user on first sign-in.
func (as *AuthService) CompleteOAuth(ctx context.Context, providerName, code string) (*sessions.Session, error) {
	p, ok := as.oauth[providerName]
	if !ok {
		return nil, apperrors.NewAuthError("oauth", apperrors.ErrProviderNotAvailable)
	}

	tok, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.NewAuthError("oauth", errors.Wrap(err, "[AuthService.CompleteOAuth] Exchange"))
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, apperrors.NewAuthError("oauth", errors.Wrap(apperrors.ErrInvalidToken, "missing id_token"))
	}
	idToken, err := p.Verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperrors.NewAuthError("oauth", errors.Wrap(err, "[AuthService.CompleteOAuth] Verify"))
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.NewAuthError("oauth", errors.Wrap(err, "[AuthService.CompleteOAuth] Claims"))
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, apperrors.NewAuthError("oauth", errors.Wrap(apperrors.ErrInvalidCredentials, "email not verified"))
	}

	user, err := as.repos.Users.GetByEmail(claims.Email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.NewAuthError("oauth", errors.Wrap(err, "[AuthService.CompleteOAuth] GetByEmail"))
		}
		now := as.nowTime()
		user = &users.User{
			Email:            claims.Email,
			FullName:         strings.TrimSpace(claims.Name),
			Provider:         providerName,
			DateJoined:       now,
			EmailConfirmedAt: &now,
		}
		if err := as.repos.Users.Upsert(user); err != nil {
			return nil, apperrors.NewAuthError("oauth", errors.Wrap(err, "[AuthService.CompleteOAuth] Users.Upsert"))
		}
	}
	return as.openSession(user)
}
