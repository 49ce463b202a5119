package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/diagnosis/luxsuv-invites/pkg/auth"
	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/utils"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/google/uuid"
)

const maxTitleLength = 200

// AssetCleaner removes files stored for an invitation (cover images and the like).
type AssetCleaner interface {
	CleanupInvitation(ctx context.Context, invitationID uuid.UUID) error
}

// NoopAssetCleaner is used when no asset storage is configured.
type NoopAssetCleaner struct{}

func (NoopAssetCleaner) CleanupInvitation(ctx context.Context, invitationID uuid.UUID) error {
	logger.DebugContext(ctx, "no asset storage configured", "invitation_id", invitationID)
	return nil
}

// InvitationService is the owner-facing side: invitation lifecycle and guest list.
type InvitationService struct {
	store   repository.Store
	issuer  *TokenIssuer
	clock   Clock
	bus     events.Publisher
	assets  AssetCleaner
	baseURL string
}

func NewInvitationService(store repository.Store, issuer *TokenIssuer, clock Clock, bus events.Publisher, assets AssetCleaner, baseURL string) *InvitationService {
	if assets == nil {
		assets = NoopAssetCleaner{}
	}
	return &InvitationService{store: store, issuer: issuer, clock: clock, bus: bus, assets: assets, baseURL: baseURL}
}

func (s *InvitationService) Create(ctx context.Context, caller auth.Caller, title string) (*domain.Invitation, error) {
	if caller.OwnerID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}
	title = utils.NormalizeString(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be 1 to %d characters", domain.ErrInvalidInput, maxTitleLength)
	}

	now := s.clock.Now()
	inv := &domain.Invitation{
		ID:        uuid.New(),
		OwnerID:   caller.OwnerID,
		Title:     title,
		Status:    domain.InvitationDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Repos().Invitations.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	logger.InfoContext(ctx, "invitation created", "invitation_id", inv.ID)
	return inv, nil
}

func (s *InvitationService) Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (*domain.InvitationSummary, error) {
	r := s.store.Repos()
	inv, err := loadOwned(ctx, r, caller, id, false)
	if err != nil {
		return nil, err
	}

	guests, err := r.Guests.CountByInvitation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count guests: %w", err)
	}
	linkGuests, err := r.Guests.CountLinkGuests(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count link guests: %w", err)
	}
	links, err := r.Links.ListByInvitation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	return &domain.InvitationSummary{
		Invitation:     *inv,
		GuestCount:     guests,
		ShareableCount: linkGuests,
		LinkCount:      len(links),
	}, nil
}

func (s *InvitationService) Publish(ctx context.Context, caller auth.Caller, id uuid.UUID) (*domain.Invitation, error) {
	return s.transition(ctx, caller, id, domain.InvitationPublished, events.InvitationPublished)
}

func (s *InvitationService) Archive(ctx context.Context, caller auth.Caller, id uuid.UUID) (*domain.Invitation, error) {
	return s.transition(ctx, caller, id, domain.InvitationArchived, events.InvitationArchived)
}

func (s *InvitationService) transition(ctx context.Context, caller auth.Caller, id uuid.UUID, to domain.InvitationStatus, subject string) (*domain.Invitation, error) {
	var updated *domain.Invitation
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		inv, err := loadOwned(ctx, r, caller, id, true)
		if err != nil {
			return err
		}
		if !inv.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, inv.Status, to)
		}
		updated, err = r.Invitations.UpdateStatus(ctx, id, inv.Status, to, s.clock.Now())
		if err != nil {
			return fmt.Errorf("update invitation status: %w", err)
		}
		if updated == nil {
			return domain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "invitation status changed", "invitation_id", id, "status", updated.Status)
	publish(ctx, s.bus, subject, invitationEvent(updated, s.clock))
	return updated, nil
}

// Delete removes the invitation with its RSVPs, guests, links and stored
// assets. Each step runs in one transaction; a failing asset cleanup aborts it.
func (s *InvitationService) Delete(ctx context.Context, caller auth.Caller, id uuid.UUID) error {
	var deleted *domain.Invitation
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		inv, err := loadOwned(ctx, r, caller, id, true)
		if err != nil {
			return err
		}

		rsvps, err := r.RSVPs.DeleteByInvitation(ctx, id)
		if err != nil {
			return fmt.Errorf("delete rsvps: %w", err)
		}
		guests, err := r.Guests.DeleteByInvitation(ctx, id)
		if err != nil {
			return fmt.Errorf("delete guests: %w", err)
		}
		links, err := r.Links.DeleteByInvitation(ctx, id)
		if err != nil {
			return fmt.Errorf("delete links: %w", err)
		}
		if _, err := r.Invitations.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete invitation: %w", err)
		}
		if err := s.assets.CleanupInvitation(ctx, id); err != nil {
			return fmt.Errorf("cleanup invitation assets: %w", err)
		}

		logger.InfoContext(ctx, "invitation deleted",
			"invitation_id", id, "rsvps", rsvps, "guests", guests, "links", links)
		deleted = inv
		return nil
	})
	if err != nil {
		return err
	}

	publish(ctx, s.bus, events.InvitationDeleted, invitationEvent(deleted, s.clock))
	return nil
}

func (s *InvitationService) AddGuest(ctx context.Context, caller auth.Caller, invitationID uuid.UUID, req domain.GuestRequest) (*domain.Guest, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	r := s.store.Repos()
	if _, err := loadOwned(ctx, r, caller, invitationID, false); err != nil {
		return nil, err
	}

	guest := &domain.Guest{
		ID:            uuid.New(),
		InvitationID:  invitationID,
		PersonalToken: s.issuer.IssuePersonalToken(),
		PlusOne:       req.PlusOne,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Phone:         req.Phone,
		CreatedAt:     s.clock.Now(),
	}
	if err := r.Guests.Create(ctx, guest); err != nil {
		return nil, fmt.Errorf("failed to create guest: %w", err)
	}

	publish(ctx, s.bus, events.GuestAdded, events.GuestAddedEvent{
		InvitationID: invitationID,
		GuestID:      guest.ID,
		FirstName:    guest.FirstName,
		LastName:     guest.LastName,
		Email:        guest.Email,
		PersonalURL:  personalURL(s.baseURL, guest.PersonalToken),
		AddedAt:      guest.CreatedAt,
	})
	return guest, nil
}

// RemoveGuest deletes a guest; the RSVP goes with it.
func (s *InvitationService) RemoveGuest(ctx context.Context, caller auth.Caller, guestID uuid.UUID) error {
	return s.store.WithTx(ctx, func(r repository.Repos) error {
		guest, err := r.Guests.GetByID(ctx, guestID)
		if err != nil {
			return fmt.Errorf("get guest: %w", err)
		}
		if guest == nil {
			return domain.ErrNotFound
		}
		if _, err := loadOwned(ctx, r, caller, guest.InvitationID, false); err != nil {
			return err
		}
		if _, err := r.Guests.Delete(ctx, guestID); err != nil {
			return fmt.Errorf("delete guest: %w", err)
		}
		return nil
	})
}

func invitationEvent(inv *domain.Invitation, clock Clock) events.InvitationEvent {
	return events.InvitationEvent{
		InvitationID: inv.ID,
		OwnerID:      inv.OwnerID,
		Title:        inv.Title,
		Status:       string(inv.Status),
		OccurredAt:   clock.Now(),
	}
}
