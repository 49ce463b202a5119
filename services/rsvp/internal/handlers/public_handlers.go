package handlers

import (
	"net/http"

	"github.com/diagnosis/luxsuv-invites/pkg/response"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ResolveAny answers for either kind of token.
func (h *Handlers) ResolveAny(w http.ResponseWriter, r *http.Request) {
	access, err := h.gateway.ResolveAny(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, access)
}

func (h *Handlers) ResolveLink(w http.ResponseWriter, r *http.Request) {
	lc, err := h.gateway.ResolveLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view := lc.Link.View()
	response.WriteJSON(w, http.StatusOK, domain.AccessContext{
		Kind:       domain.TokenShareable,
		Invitation: lc.Invitation.Public(),
		Link:       &view,
	})
}

func (h *Handlers) ResolvePersonal(w http.ResponseWriter, r *http.Request) {
	access, err := h.gateway.ResolvePersonal(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, access)
}

// Respond records the first response for a personal token.
func (h *Handlers) Respond(w http.ResponseWriter, r *http.Request) {
	var resp domain.Response
	if !decode(w, r, &resp) {
		return
	}
	rsvp, err := h.rsvps.Submit(r.Context(), chi.URLParam(r, "token"), resp)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, rsvp)
}

func (h *Handlers) UpdateResponse(w http.ResponseWriter, r *http.Request) {
	var patch domain.ResponsePatch
	if !decode(w, r, &patch) {
		return
	}
	rsvp, err := h.rsvps.Update(r.Context(), chi.URLParam(r, "token"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, rsvp)
}

// RespondViaLink registers the respondent as a guest and records the response.
// The body carries the personal details and the response side by side.
func (h *Handlers) RespondViaLink(w http.ResponseWriter, r *http.Request) {
	var in struct {
		domain.PersonalInfo
		domain.Response
	}
	if !decode(w, r, &in) {
		return
	}

	sub, err := h.rsvps.SubmitViaShareableLink(r.Context(), chi.URLParam(r, "token"), in.PersonalInfo, in.Response)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, struct {
		*domain.LinkSubmission
		PersonalURL string `json:"personal_url"`
	}{sub, h.personalURL(sub.Guest.PersonalToken)})
}
