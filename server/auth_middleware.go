package server

import (
	"context"
	"crypto/subtle"
	"net/http"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/payments"
	"github.com/jrsteele09/swishview/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyVisitor stores the request's *visitor
	ContextKeyVisitor ContextKey = "visitor"
	// ContextKeySession stores the verified *sessions.Session
	ContextKeySession ContextKey = "session"
)

// VisitorMiddleware attaches the visitor named by the visitor cookie, starting a new
// one when the cookie is missing or the visitor has been reaped.
func (s *Server) VisitorMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v *visitor
		if cookie, err := r.Cookie(visitorCookieName); err == nil {
			v, _ = s.visitors.get(cookie.Value)
		}
		if v == nil {
			created, err := s.visitors.create()
			if err != nil {
				writeError(w, r, err)
				return
			}
			v = created
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookieName,
				Value:    v.id,
				Path:     "/",
				HttpOnly: true,
				Secure:   getScheme(r) == "https",
				SameSite: http.SameSiteLaxMode,
			})
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyVisitor, v)))
	}
}

// RequireSession rejects visitors without a live session. Expired access tokens are
// refreshed on the way through.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := visitorFrom(r)
		if v == nil {
			writeError(w, r, apperrors.NewAuthError("session", apperrors.ErrNoSession))
			return
		}
		session, err := v.client.GetCurrentSession(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if session == nil {
			writeError(w, r, apperrors.NewAuthError("session", apperrors.ErrNoSession))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeySession, session)))
	}
}

// RequireDeliveryKey guards delivery system callbacks. An unset key rejects everything.
func (s *Server) RequireDeliveryKey(next http.HandlerFunc) http.HandlerFunc {
	return requireKey("delivery", deliveryKeyHeader, s.config.GetDeliveryAPIKey, next)
}

// RequirePaymentKey guards the payment provider's confirmation callback.
func (s *Server) RequirePaymentKey(next http.HandlerFunc) http.HandlerFunc {
	return requireKey("payment", payments.KeyHeader, s.config.GetPaymentCallbackKey, next)
}

func requireKey(op, header string, key func() string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := key()
		got := r.Header.Get(header)
		if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
			writeError(w, r, apperrors.NewAuthError(op, apperrors.ErrInvalidCredentials))
			return
		}
		next(w, r)
	}
}

func visitorFrom(r *http.Request) *visitor {
	v, _ := r.Context().Value(ContextKeyVisitor).(*visitor)
	return v
}

func sessionFrom(r *http.Request) *sessions.Session {
	s, _ := r.Context().Value(ContextKeySession).(*sessions.Session)
	return s
}
