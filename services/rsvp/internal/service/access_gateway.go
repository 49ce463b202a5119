package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
)

// AccessGateway resolves any bearer token to what its holder may see. The
// namespace is found by lookup; a token unknown to both namespaces yields the
// same ErrNotFound either way.
type AccessGateway struct {
	store repository.Store
	links *LinkStateMachine
}

func NewAccessGateway(store repository.Store, links *LinkStateMachine) *AccessGateway {
	return &AccessGateway{store: store, links: links}
}

func (g *AccessGateway) ResolveAny(ctx context.Context, token string) (*domain.AccessContext, error) {
	if token == "" {
		metrics.TokenResolved("unknown", "not_found")
		return nil, domain.ErrNotFound
	}
	r := g.store.Repos()

	guest, err := r.Guests.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	if guest != nil {
		pa, err := g.personal(ctx, r, guest)
		observe(domain.TokenPersonal, err)
		if err != nil {
			return nil, err
		}
		return &domain.AccessContext{Kind: domain.TokenPersonal, Invitation: pa.Invitation, Guest: &pa.Guest, RSVP: pa.RSVP}, nil
	}

	lc, err := g.links.resolve(ctx, r, token)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.TokenResolved("unknown", "not_found")
		return nil, domain.ErrNotFound
	}
	observe(domain.TokenShareable, err)
	if err != nil {
		return nil, err
	}
	view := lc.Link.View()
	return &domain.AccessContext{Kind: domain.TokenShareable, Invitation: lc.Invitation.Public(), Link: &view}, nil
}

// ResolvePersonal is ResolveAny restricted to personal tokens.
func (g *AccessGateway) ResolvePersonal(ctx context.Context, token string) (*domain.PersonalAccess, error) {
	r := g.store.Repos()
	guest, err := r.Guests.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get guest: %w", err)
	}
	if guest == nil {
		observe(domain.TokenPersonal, domain.ErrNotFound)
		return nil, domain.ErrNotFound
	}
	pa, err := g.personal(ctx, r, guest)
	observe(domain.TokenPersonal, err)
	return pa, err
}

// ResolveLink is ResolveAny restricted to shareable tokens.
func (g *AccessGateway) ResolveLink(ctx context.Context, token string) (*domain.LinkContext, error) {
	lc, err := g.links.Resolve(ctx, token)
	observe(domain.TokenShareable, err)
	return lc, err
}

func (g *AccessGateway) personal(ctx context.Context, r repository.Repos, guest *domain.Guest) (*domain.PersonalAccess, error) {
	inv, err := r.Invitations.GetByID(ctx, guest.InvitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if !inv.IsPublished() {
		return nil, domain.ErrNotPublished
	}
	rsvp, err := r.RSVPs.GetByGuestID(ctx, guest.ID)
	if err != nil {
		return nil, fmt.Errorf("get rsvp: %w", err)
	}
	return &domain.PersonalAccess{Invitation: inv.Public(), Guest: *guest, RSVP: rsvp}, nil
}

func observe(kind domain.TokenKind, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		result = "not_found"
	case errors.Is(err, domain.ErrNotPublished):
		result = "not_published"
	case errors.Is(err, domain.ErrDisabled):
		result = "disabled"
	case errors.Is(err, domain.ErrExpired):
		result = "expired"
	default:
		result = "error"
	}
	metrics.TokenResolved(string(kind), result)
}
