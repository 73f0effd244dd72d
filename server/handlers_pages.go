package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/swishview/campaigns"
	"github.com/jrsteele09/swishview/routing"
	"github.com/jrsteele09/swishview/sessionmanager"
	"github.com/jrsteele09/swishview/users"
)

const pageResolveTimeout = 10 * time.Second

type adminPage struct {
	View      sessionmanager.View `json:"view"`
	Principal *users.Principal    `json:"principal,omitempty"`
	Role      routing.Role        `json:"role"`
	GateID    string              `json:"gate_id,omitempty"`
	GatedAt   *time.Time          `json:"gated_at,omitempty"`
}

type paymentPage struct {
	View     sessionmanager.View `json:"view"`
	Campaign *campaigns.Campaign `json:"campaign"`
	Payable  bool                `json:"payable"`
}

func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := s.resolvePage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) adminPageHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := s.resolvePage(w, r)
	if !ok {
		return
	}
	page := adminPage{View: view, Principal: view.Principal, Role: view.Role}
	if flag, ok := s.flags.Get(visitorFrom(r).id); ok {
		page.GateID = flag.ID
		page.GatedAt = &flag.Timestamp
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) paymentPageHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := s.resolvePage(w, r)
	if !ok {
		return
	}
	if view.Principal == nil {
		http.Redirect(w, r, routing.PathAuth, http.StatusSeeOther)
		return
	}
	c, err := s.deps.Campaigns.Get(r.Context(), view.Principal.ID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentPage{View: view, Campaign: c, Payable: c.Status == campaigns.StatusPending})
}

// resolvePage settles the visitor's view for the requested path. It answers with a
// 303 when the routing policy sends the visitor somewhere else.
func (s *Server) resolvePage(w http.ResponseWriter, r *http.Request) (sessionmanager.View, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), pageResolveTimeout)
	defer cancel()

	view, err := visitorFrom(r).manager.Resolve(ctx, r.URL.Path)
	if err != nil {
		writeError(w, r, err)
		return view, false
	}
	if view.Path != trimPath(r.URL.Path) {
		http.Redirect(w, r, view.Path, http.StatusSeeOther)
		return view, false
	}
	return view, true
}

func trimPath(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}
