package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/auth"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	mw "github.com/diagnosis/luxsuv-invites/pkg/middleware"
	"github.com/diagnosis/luxsuv-invites/pkg/response"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ctxKey string

const callerKey ctxKey = "caller"

// Options carries the HTTP-only settings of the handlers.
type Options struct {
	JWTSecret      string
	PublicBaseURL  string
	Limiter        *mw.RateLimiter
	Idempotency    mw.IdempotencyStore
	IdempotencyTTL time.Duration
}

type Handlers struct {
	invitations *service.InvitationService
	issuer      *service.TokenIssuer
	rsvps       *service.RSVPRecorder
	gateway     *service.AccessGateway
	opts        Options
}

func New(invitations *service.InvitationService, issuer *service.TokenIssuer, rsvps *service.RSVPRecorder, gateway *service.AccessGateway, opts Options) *Handlers {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &Handlers{invitations: invitations, issuer: issuer, rsvps: rsvps, gateway: gateway, opts: opts}
}

// Routes mounts the owner API behind RequireOwner and the token API behind
// the rate limiter.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(h.RequireOwner)

		r.Post("/invitations", h.CreateInvitation)
		r.Get("/invitations/{id}", h.GetInvitation)
		r.Post("/invitations/{id}/publish", h.PublishInvitation)
		r.Post("/invitations/{id}/archive", h.ArchiveInvitation)
		r.Delete("/invitations/{id}", h.DeleteInvitation)
		r.Post("/invitations/{id}/guests", h.AddGuest)
		r.Get("/invitations/{id}/links", h.ListLinks)
		r.Delete("/guests/{id}", h.RemoveGuest)
		r.With(h.idempotent).Post("/links", h.IssueLink)
		r.Delete("/links/{token}", h.DisableLink)
	})

	r.Group(func(r chi.Router) {
		if h.opts.Limiter != nil {
			r.Use(h.opts.Limiter.Handler)
		}
		r.Get("/links/{token}", h.ResolveLink)
		r.With(h.idempotent).Post("/links/{token}/respond", h.RespondViaLink)
		r.Get("/tokens/{token}", h.ResolvePersonal)
		r.Post("/tokens/{token}/respond", h.Respond)
		r.Patch("/tokens/{token}", h.UpdateResponse)
		r.Get("/access/{token}", h.ResolveAny)
	})

	return r
}

// RequireOwner authenticates the bearer JWT and puts the caller on the context.
func (h *Handlers) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(w, "Missing or invalid authorization header")
			return
		}

		caller, err := auth.CallerFromToken(strings.TrimPrefix(authHeader, "Bearer "), h.opts.JWTSecret)
		if err != nil {
			response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
			return
		}
		if caller.Role != auth.RoleOwner {
			response.Forbidden(w, "Owner access required")
			return
		}

		ctx := context.WithValue(r.Context(), logger.OwnerIDKey, caller.OwnerID.String())
		ctx = context.WithValue(ctx, callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handlers) idempotent(next http.Handler) http.Handler {
	if h.opts.Idempotency == nil {
		return next
	}
	return mw.IdempotencyMiddleware(h.opts.Idempotency, h.opts.IdempotencyTTL, idempotencyScope)(next)
}

// idempotencyScope keys replays by owner on authenticated routes. Public
// routes have no caller and rely on the request body hash.
func idempotencyScope(r *http.Request) string {
	if caller := callerFrom(r); caller.OwnerID != uuid.Nil {
		return caller.OwnerID.String()
	}
	return ""
}

func callerFrom(r *http.Request) auth.Caller {
	caller, _ := r.Context().Value(callerKey).(auth.Caller)
	return caller
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.BadRequest(w, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps a domain error to its HTTP status and error code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		response.WriteError(w, http.StatusBadRequest, err.Error(), response.CodeInvalidInput)
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Not found")
	case errors.Is(err, domain.ErrNotPublished):
		response.WriteError(w, http.StatusForbidden, "Invitation is not published", response.CodeNotPublished)
	case errors.Is(err, domain.ErrDisabled):
		response.WriteError(w, http.StatusGone, "Link is disabled", response.CodeLinkDisabled)
	case errors.Is(err, domain.ErrExpired):
		response.WriteError(w, http.StatusGone, "Link has expired", response.CodeLinkExpired)
	case errors.Is(err, domain.ErrAlreadyUsed):
		response.WriteError(w, http.StatusConflict, "Token already used", response.CodeAlreadyUsed)
	case errors.Is(err, domain.ErrQuotaExhausted):
		response.WriteError(w, http.StatusConflict, "Guest quota exhausted", response.CodeQuotaExhausted)
	case errors.Is(err, domain.ErrPartySizeNotAllowed):
		response.WriteError(w, http.StatusUnprocessableEntity, "Party size not allowed for this guest", response.CodePartySize)
	case errors.Is(err, domain.ErrNoExistingResponse):
		response.WriteError(w, http.StatusConflict, "No existing response to update", response.CodeNoResponse)
	case errors.Is(err, domain.ErrUnauthorized):
		response.Forbidden(w, "Not the invitation owner")
	case errors.Is(err, domain.ErrInvalidTransition):
		response.WriteError(w, http.StatusConflict, err.Error(), response.CodeInvalidTransition)
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		response.InternalError(w, "Internal server error")
	}
}
