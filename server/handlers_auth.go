package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/jrsteele09/swishview/routing"
	"github.com/jrsteele09/swishview/sessionmanager"
	"github.com/jrsteele09/swishview/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type adminLoginRequest struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

type navigationResponse struct {
	Redirect string              `json:"redirect"`
	View     sessionmanager.View `json:"view"`
}

func (s *Server) signInHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v := visitorFrom(r)
	if _, err := v.client.SignIn(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	s.navigate(w, r, routing.PathAuth)
}

func (s *Server) signUpHandler(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v := visitorFrom(r)
	if _, err := v.client.SignUp(r.Context(), req.Email, req.Password, users.Profile{FullName: req.FullName}); err != nil {
		writeError(w, r, err)
		return
	}
	s.navigate(w, r, routing.PathAuth)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r)
	s.flags.Clear(v.id)
	v.manager.SetAdminGate(false)
	if err := v.manager.SignOut(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := v.manager.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, navigationResponse{Redirect: view.Path, View: view})
}

// oauthStartHandler sends the browser to the provider's consent screen.
func (s *Server) oauthStartHandler(w http.ResponseWriter, r *http.Request) {
	url, err := visitorFrom(r).client.SignInWithOAuth(r.Context(), r.PathValue("provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func (s *Server) oauthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		log.Warn().Str("reason", reason).Msg("oauth sign-in declined")
		writeError(w, r, apperrors.NewAuthError("oauth", errors.Wrap(apperrors.ErrInvalidCredentials, reason)))
		return
	}
	v := visitorFrom(r)
	if _, err := v.client.CompleteOAuth(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := v.manager.Navigate(r.Context(), routing.PathDashboard)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, view.Path, http.StatusSeeOther)
}

// adminLoginHandler checks admin-gate credentials. It only exists when the gate is enabled.
func (s *Server) adminLoginHandler(w http.ResponseWriter, r *http.Request) {
	if !s.policy.AdminGateEnabled() {
		writeError(w, r, apperrors.ErrUnsupported)
		return
	}
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	flag, err := s.deps.Gate.Check(req.ID, req.Secret)
	if err != nil {
		log.Warn().Str("gate_id", req.ID).Str("client", clientAddress(r)).Msg("admin gate rejected")
		writeError(w, r, err)
		return
	}
	v := visitorFrom(r)
	s.flags.Set(v.id, flag)
	v.manager.SetAdminGate(true)
	s.navigate(w, r, routing.PathAdminLogin)
}

// navigate applies the routing policy to path after an auth change and reports
// where the visitor ends up.
func (s *Server) navigate(w http.ResponseWriter, r *http.Request, path string) {
	view, err := visitorFrom(r).manager.Navigate(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, navigationResponse{Redirect: view.Path, View: view})
}
