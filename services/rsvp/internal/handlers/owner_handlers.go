package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/response"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type guestResponse struct {
	domain.Guest
	PersonalURL string `json:"personal_url"`
}

func (h *Handlers) personalURL(token string) string {
	return strings.TrimRight(h.opts.PublicBaseURL, "/") + "/rsvp/" + token
}

// CreateInvitation creates a DRAFT invitation owned by the caller.
func (h *Handlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title string `json:"title"`
	}
	if !decode(w, r, &in) {
		return
	}

	inv, err := h.invitations.Create(r.Context(), callerFrom(r), in.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, inv)
}

func (h *Handlers) GetInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	summary, err := h.invitations.Get(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handlers) PublishInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.invitations.Publish(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handlers) ArchiveInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.invitations.Archive(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, inv)
}

// DeleteInvitation removes the invitation and everything hanging off it.
func (h *Handlers) DeleteInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.invitations.Delete(r.Context(), callerFrom(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddGuest creates a named guest with a personal token.
func (h *Handlers) AddGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.GuestRequest
	if !decode(w, r, &req) {
		return
	}

	guest, err := h.invitations.AddGuest(r.Context(), callerFrom(r), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, guestResponse{Guest: *guest, PersonalURL: h.personalURL(guest.PersonalToken)})
}

func (h *Handlers) RemoveGuest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.invitations.RemoveGuest(r.Context(), callerFrom(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListLinks(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	links, err := h.issuer.ListLinks(r.Context(), callerFrom(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]domain.LinkView, 0, len(links))
	for i := range links {
		views = append(views, links[i].View())
	}
	response.WriteJSON(w, http.StatusOK, views)
}

// IssueLink creates a shareable link sized to the owner's remaining quota.
func (h *Handlers) IssueLink(w http.ResponseWriter, r *http.Request) {
	var in struct {
		InvitationID string     `json:"invitation_id"`
		ExpiresAt    *time.Time `json:"expires_at,omitempty"`
		AllowPlusOne bool       `json:"allow_plus_one"`
	}
	if !decode(w, r, &in) {
		return
	}
	invitationID, err := uuid.Parse(in.InvitationID)
	if err != nil {
		response.BadRequest(w, "Invalid invitation_id")
		return
	}

	link, err := h.issuer.IssueShareableLink(r.Context(), callerFrom(r), domain.LinkRequest{
		InvitationID: invitationID,
		ExpiresAt:    in.ExpiresAt,
		AllowPlusOne: in.AllowPlusOne,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, link.View())
}

func (h *Handlers) DisableLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.issuer.DisableLink(r.Context(), callerFrom(r), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, link.View())
}
