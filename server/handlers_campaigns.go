package server

import (
	"net/http"

	"github.com/jrsteele09/swishview/campaigns"
	apperrors "github.com/jrsteele09/swishview/internal/errors"
	"github.com/pkg/errors"
)

type campaignsResponse struct {
	Campaigns []*campaigns.Campaign `json:"campaigns"`
}

type confirmRequest struct {
	Token string `json:"token"`
}

type viewsRequest struct {
	CurrentViews *int64 `json:"current_views"`
}

func (s *Server) viewHandler(w http.ResponseWriter, r *http.Request) {
	view, err := visitorFrom(r).manager.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Campaigns.List(r.Context(), ownerOf(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*campaigns.Campaign{}
	}
	writeJSON(w, http.StatusOK, campaignsResponse{Campaigns: list})
}

func (s *Server) createCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var fields campaigns.Fields
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Campaigns.Create(r.Context(), ownerOf(r), fields)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.visitors.refreshOwner(c.OwnerID)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) editCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var patch campaigns.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if patch.Empty() {
		writeError(w, r, errors.Wrap(apperrors.ErrInvalidField, "nothing to change"))
		return
	}
	c, err := s.deps.Campaigns.Edit(r.Context(), ownerOf(r), r.PathValue("id"), patch)
	s.respondCampaign(w, r, c, err)
}

func (s *Server) pauseCampaignHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Campaigns.Pause(r.Context(), ownerOf(r), r.PathValue("id"))
	s.respondCampaign(w, r, c, err)
}

func (s *Server) resumeCampaignHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Campaigns.Resume(r.Context(), ownerOf(r), r.PathValue("id"))
	s.respondCampaign(w, r, c, err)
}

func (s *Server) initiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	intent, err := s.deps.Payments.Initiate(r.Context(), ownerOf(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// awaitPaymentHandler blocks until the campaign is confirmed or the wait times out.
func (s *Server) awaitPaymentHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Payments.Await(r.Context(), ownerOf(r), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// confirmPaymentHandler is the payment processor callback.
func (s *Server) confirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Payments.Confirm(r.Context(), req.Token)
	s.respondCampaign(w, r, c, err)
}

func (s *Server) recordViewsHandler(w http.ResponseWriter, r *http.Request) {
	var req viewsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.CurrentViews == nil {
		writeError(w, r, errors.Wrap(apperrors.ErrInvalidField, "current_views is required"))
		return
	}
	c, err := s.deps.Campaigns.RecordViews(r.Context(), r.PathValue("id"), *req.CurrentViews)
	s.respondCampaign(w, r, c, err)
}

func (s *Server) completeCampaignHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Campaigns.Complete(r.Context(), r.PathValue("id"))
	s.respondCampaign(w, r, c, err)
}

// respondCampaign writes a changed campaign and tells the owner's visitors to re-read.
func (s *Server) respondCampaign(w http.ResponseWriter, r *http.Request, c *campaigns.Campaign, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.visitors.refreshOwner(c.OwnerID)
	writeJSON(w, http.StatusOK, c)
}

// fail writes err, surfacing policy violations in the visitor's next render too.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if v := visitorFrom(r); v != nil && apperrors.IsPolicyViolation(err) {
		v.manager.Report(err)
	}
	writeError(w, r, err)
}

func ownerOf(r *http.Request) string {
	if session := sessionFrom(r); session != nil {
		return session.Principal.ID
	}
	return ""
}
