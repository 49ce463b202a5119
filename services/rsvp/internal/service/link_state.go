package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/google/uuid"
)

// LinkStateMachine owns the transitions of shareable links (SHARED to USED,
// soft-disable, expiry) and the one-shot consumption of personal tokens.
type LinkStateMachine struct {
	store repository.Store
	clock Clock
}

func NewLinkStateMachine(store repository.Store, clock Clock) *LinkStateMachine {
	return &LinkStateMachine{store: store, clock: clock}
}

// Resolve returns the link and its invitation if the link may be used.
func (m *LinkStateMachine) Resolve(ctx context.Context, token string) (*domain.LinkContext, error) {
	return m.resolve(ctx, m.store.Repos(), token)
}

func (m *LinkStateMachine) resolve(ctx context.Context, r repository.Repos, token string) (*domain.LinkContext, error) {
	link, err := r.Links.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	if !link.IsActive {
		return nil, domain.ErrDisabled
	}
	if link.IsExpired(m.clock.Now()) {
		return nil, domain.ErrExpired
	}

	inv, err := r.Invitations.GetByID(ctx, link.InvitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if !inv.IsPublished() {
		return nil, domain.ErrNotPublished
	}
	return &domain.LinkContext{Link: *link, Invitation: *inv}, nil
}

// Consume claims one use of the link for guestID with a single conditional
// write. When nothing matched, the link is re-read to report why.
func (m *LinkStateMachine) Consume(ctx context.Context, r repository.Repos, token string, guestID uuid.UUID) (*domain.ShareableLink, error) {
	now := m.clock.Now()
	link, err := r.Links.Consume(ctx, token, guestID, now)
	if err != nil {
		return nil, fmt.Errorf("consume link: %w", err)
	}
	if link != nil {
		metrics.LinkConsumption("ok")
		return link, nil
	}

	cause := m.whyNotConsumed(ctx, r, token)
	metrics.LinkConsumption(consumptionLabel(cause))
	return nil, cause
}

func (m *LinkStateMachine) whyNotConsumed(ctx context.Context, r repository.Repos, token string) error {
	link, err := r.Links.GetByToken(ctx, token)
	switch {
	case err != nil:
		return fmt.Errorf("reload link: %w", err)
	case link == nil:
		return domain.ErrNotFound
	case !link.IsActive:
		return domain.ErrDisabled
	case link.IsExpired(m.clock.Now()):
		return domain.ErrExpired
	default:
		return domain.ErrAlreadyUsed
	}
}

func consumptionLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyUsed):
		return "exhausted"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDisabled):
		return "disabled"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	default:
		return "error"
	}
}

// MarkUsed is the at-most-once gate for a personal token.
func (m *LinkStateMachine) MarkUsed(ctx context.Context, r repository.Repos, guestID uuid.UUID) error {
	ok, err := r.Guests.MarkUsed(ctx, guestID, m.clock.Now())
	if err != nil {
		return fmt.Errorf("mark guest used: %w", err)
	}
	if !ok {
		return domain.ErrAlreadyUsed
	}
	return nil
}

// Disable soft-disables a link. Disabling twice is a no-op.
func (m *LinkStateMachine) Disable(ctx context.Context, r repository.Repos, link *domain.ShareableLink) error {
	if !link.IsActive {
		return nil
	}
	if err := r.Links.Disable(ctx, link.ID); err != nil {
		return fmt.Errorf("disable link: %w", err)
	}
	link.IsActive = false
	return nil
}
