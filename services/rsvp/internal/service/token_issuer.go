package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/luxsuv-invites/pkg/auth"
	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/google/uuid"
)

// TokenIssuer mints personal tokens and shareable links.
type TokenIssuer struct {
	store repository.Store
	quota QuotaSource
	links *LinkStateMachine
	clock Clock
	bus   events.Publisher
}

func NewTokenIssuer(store repository.Store, quota QuotaSource, links *LinkStateMachine, clock Clock, bus events.Publisher) *TokenIssuer {
	return &TokenIssuer{store: store, quota: quota, links: links, clock: clock, bus: bus}
}

func (t *TokenIssuer) IssuePersonalToken() string {
	return NewToken(t.clock.Now())
}

// IssueShareableLink creates a link whose use cap is whatever remains of the
// owner's allowance after existing link guests and the unclaimed uses of
// other live links. The count and the insert happen under a row lock on the
// invitation so concurrent issuers cannot both spend the same allowance.
func (t *TokenIssuer) IssueShareableLink(ctx context.Context, caller auth.Caller, req domain.LinkRequest) (*domain.ShareableLink, error) {
	inv, err := loadOwned(ctx, t.store.Repos(), caller, req.InvitationID, false)
	if err != nil {
		return nil, err
	}

	now := t.clock.Now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidInput)
	}

	// The quota source may call out to billing; keep it outside the transaction.
	maxGuests, err := t.quota.MaxGuests(ctx, inv.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("lookup guest quota: %w", err)
	}

	var link *domain.ShareableLink
	err = t.store.WithTx(ctx, func(r repository.Repos) error {
		if _, err := loadOwned(ctx, r, caller, req.InvitationID, true); err != nil {
			return err
		}

		allocated, err := r.Links.AllocatedUses(ctx, req.InvitationID, now)
		if err != nil {
			return fmt.Errorf("sum allocated uses: %w", err)
		}

		remaining := maxGuests - allocated
		if remaining <= 0 {
			return domain.ErrQuotaExhausted
		}

		link = &domain.ShareableLink{
			ID:           uuid.New(),
			InvitationID: req.InvitationID,
			Token:        NewToken(now),
			Status:       domain.LinkShared,
			IsActive:     true,
			MaxUses:      remaining,
			UsedCount:    0,
			AllowPlusOne: req.AllowPlusOne,
			ExpiresAt:    req.ExpiresAt,
			CreatedAt:    now,
		}
		if err := r.Links.Create(ctx, link); err != nil {
			return fmt.Errorf("create link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LinkIssued()
	logger.InfoContext(ctx, "shareable link issued",
		"invitation_id", link.InvitationID, "link_id", link.ID, "max_uses", link.MaxUses)
	publish(ctx, t.bus, events.LinkIssued, events.LinkIssuedEvent{
		InvitationID: link.InvitationID,
		LinkID:       link.ID,
		MaxUses:      link.MaxUses,
		ExpiresAt:    link.ExpiresAt,
		IssuedAt:     now,
	})
	return link, nil
}

// DisableLink soft-disables a link so it can no longer be consumed.
func (t *TokenIssuer) DisableLink(ctx context.Context, caller auth.Caller, token string) (*domain.ShareableLink, error) {
	r := t.store.Repos()
	link, err := r.Links.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := loadOwned(ctx, r, caller, link.InvitationID, false); err != nil {
		return nil, err
	}

	wasActive := link.IsActive
	if err := t.links.Disable(ctx, r, link); err != nil {
		return nil, err
	}
	if wasActive {
		publish(ctx, t.bus, events.LinkDisabled, events.LinkDisabledEvent{
			InvitationID: link.InvitationID,
			LinkID:       link.ID,
			DisabledAt:   t.clock.Now(),
		})
	}
	return link, nil
}

func (t *TokenIssuer) ListLinks(ctx context.Context, caller auth.Caller, invitationID uuid.UUID) ([]domain.ShareableLink, error) {
	r := t.store.Repos()
	if _, err := loadOwned(ctx, r, caller, invitationID, false); err != nil {
		return nil, err
	}
	links, err := r.Links.ListByInvitation(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// loadOwned fetches an invitation the caller owns, optionally row-locked.
func loadOwned(ctx context.Context, r repository.Repos, caller auth.Caller, id uuid.UUID, lock bool) (*domain.Invitation, error) {
	var (
		inv *domain.Invitation
		err error
	)
	if lock {
		inv, err = r.Invitations.LockByID(ctx, id)
	} else {
		inv, err = r.Invitations.GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if !caller.Owns(inv.OwnerID) {
		return nil, domain.ErrUnauthorized
	}
	return inv, nil
}
