package service

import (
	"context"
	"fmt"

	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/google/uuid"
)

// RSVPRecorder validates and persists attendance responses.
type RSVPRecorder struct {
	store   repository.Store
	links   *LinkStateMachine
	clock   Clock
	bus     events.Publisher
	baseURL string
}

func NewRSVPRecorder(store repository.Store, links *LinkStateMachine, clock Clock, bus events.Publisher, baseURL string) *RSVPRecorder {
	return &RSVPRecorder{store: store, links: links, clock: clock, bus: bus, baseURL: baseURL}
}

type submission struct {
	guest      *domain.Guest
	invitation *domain.Invitation
	rsvp       *domain.RSVP
}

// Submit records the first response for a personal token. The token is spent
// in the same transaction that stores the RSVP.
func (s *RSVPRecorder) Submit(ctx context.Context, personalToken string, resp domain.Response) (*domain.RSVP, error) {
	if err := resp.Normalize(); err != nil {
		return nil, err
	}

	var sub *submission
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		var err error
		sub, err = s.submit(ctx, r, personalToken, resp)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recorded(ctx, "personal", events.RSVPSubmitted, sub)
	return sub.rsvp, nil
}

func (s *RSVPRecorder) submit(ctx context.Context, r repository.Repos, personalToken string, resp domain.Response) (*submission, error) {
	guest, inv, err := s.guestAndInvitation(ctx, r, personalToken)
	if err != nil {
		return nil, err
	}
	if guest.IsUsed() {
		return nil, domain.ErrAlreadyUsed
	}
	if err := resp.CheckPartySize(guest); err != nil {
		return nil, err
	}
	if err := s.links.MarkUsed(ctx, r, guest.ID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rsvp := &domain.RSVP{
		ID:                 uuid.New(),
		GuestID:            guest.ID,
		Status:             resp.Status,
		NumberOfGuests:     resp.NumberOfGuests,
		AttendingCeremony:  resp.AttendingCeremony,
		AttendingReception: resp.AttendingReception,
		Message:            resp.Message,
		RespondedAt:        now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.RSVPs.Create(ctx, rsvp); err != nil {
		return nil, fmt.Errorf("create rsvp: %w", err)
	}
	return &submission{guest: guest, invitation: inv, rsvp: rsvp}, nil
}

// Update changes an existing response in place. The personal token's
// used flag is not consulted.
func (s *RSVPRecorder) Update(ctx context.Context, personalToken string, patch domain.ResponsePatch) (*domain.RSVP, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var sub *submission
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		guest, inv, err := s.guestAndInvitation(ctx, r, personalToken)
		if err != nil {
			return err
		}
		existing, err := r.RSVPs.GetByGuestID(ctx, guest.ID)
		if err != nil {
			return fmt.Errorf("get rsvp: %w", err)
		}
		if existing == nil {
			return domain.ErrNoExistingResponse
		}

		merged := patch.Apply(existing)
		if err := merged.Normalize(); err != nil {
			return err
		}
		if err := merged.CheckPartySize(guest); err != nil {
			return err
		}

		now := s.clock.Now()
		existing.Status = merged.Status
		existing.NumberOfGuests = merged.NumberOfGuests
		existing.AttendingCeremony = merged.AttendingCeremony
		existing.AttendingReception = merged.AttendingReception
		existing.Message = merged.Message
		existing.RespondedAt = now
		existing.UpdatedAt = now
		if err := r.RSVPs.Update(ctx, existing); err != nil {
			return fmt.Errorf("update rsvp: %w", err)
		}
		sub = &submission{guest: guest, invitation: inv, rsvp: existing}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorded(ctx, "update", events.RSVPUpdated, sub)
	return sub.rsvp, nil
}

// SubmitViaShareableLink mints a guest for the respondent, claims one use of
// the link and records the response, all in one transaction.
func (s *RSVPRecorder) SubmitViaShareableLink(ctx context.Context, linkToken string, info domain.PersonalInfo, resp domain.Response) (*domain.LinkSubmission, error) {
	if err := info.Normalize(); err != nil {
		return nil, err
	}
	if err := resp.Normalize(); err != nil {
		return nil, err
	}

	var (
		sub  *submission
		link *domain.ShareableLink
	)
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		lc, err := s.links.resolve(ctx, r, linkToken)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		linkID := lc.Link.ID
		guest := &domain.Guest{
			ID:            uuid.New(),
			InvitationID:  lc.Invitation.ID,
			PersonalToken: NewToken(now),
			PlusOne:       lc.Link.AllowPlusOne,
			FirstName:     info.FirstName,
			LastName:      info.LastName,
			Email:         info.Email,
			Phone:         info.Phone,
			LinkID:        &linkID,
			CreatedAt:     now,
		}
		if err := r.Guests.Create(ctx, guest); err != nil {
			return fmt.Errorf("create guest: %w", err)
		}

		link, err = s.links.Consume(ctx, r, linkToken, guest.ID)
		if err != nil {
			return err
		}

		sub, err = s.submit(ctx, r, guest.PersonalToken, resp)
		return err
	})
	if err != nil {
		return nil, err
	}

	// submit returns the guest as stored before MarkUsed.
	usedAt := sub.rsvp.RespondedAt
	sub.guest.UsedAt = &usedAt

	publish(ctx, s.bus, events.GuestAdded, events.GuestAddedEvent{
		InvitationID: sub.invitation.ID,
		GuestID:      sub.guest.ID,
		FirstName:    sub.guest.FirstName,
		LastName:     sub.guest.LastName,
		Email:        sub.guest.Email,
		PersonalURL:  personalURL(s.baseURL, sub.guest.PersonalToken),
		LinkID:       sub.guest.LinkID,
		AddedAt:      sub.guest.CreatedAt,
	})
	publish(ctx, s.bus, events.LinkConsumed, events.LinkConsumedEvent{
		InvitationID: link.InvitationID,
		LinkID:       link.ID,
		GuestID:      sub.guest.ID,
		UsedCount:    link.UsedCount,
		MaxUses:      link.MaxUses,
		ConsumedAt:   sub.rsvp.RespondedAt,
	})
	s.recorded(ctx, "shareable", events.RSVPSubmitted, sub)

	return &domain.LinkSubmission{Guest: *sub.guest, RSVP: *sub.rsvp}, nil
}

func (s *RSVPRecorder) guestAndInvitation(ctx context.Context, r repository.Repos, personalToken string) (*domain.Guest, *domain.Invitation, error) {
	guest, err := r.Guests.GetByToken(ctx, personalToken)
	if err != nil {
		return nil, nil, fmt.Errorf("get guest: %w", err)
	}
	if guest == nil {
		return nil, nil, domain.ErrNotFound
	}
	inv, err := r.Invitations.GetByID(ctx, guest.InvitationID)
	if err != nil {
		return nil, nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv == nil {
		return nil, nil, domain.ErrNotFound
	}
	if !inv.IsPublished() {
		return nil, nil, domain.ErrNotPublished
	}
	return guest, inv, nil
}

func (s *RSVPRecorder) recorded(ctx context.Context, source, subject string, sub *submission) {
	metrics.RSVPRecorded(source, string(sub.rsvp.Status))
	logger.InfoContext(ctx, "rsvp recorded",
		"source", source,
		"invitation_id", sub.invitation.ID,
		"guest_id", sub.guest.ID,
		"status", sub.rsvp.Status,
		"number_of_guests", sub.rsvp.NumberOfGuests,
	)
	publish(ctx, s.bus, subject, events.RSVPEvent{
		InvitationID:    sub.invitation.ID,
		InvitationTitle: sub.invitation.Title,
		OwnerID:         sub.invitation.OwnerID,
		GuestID:         sub.guest.ID,
		GuestName:       sub.guest.FullName(),
		GuestEmail:      sub.guest.Email,
		Status:          string(sub.rsvp.Status),
		NumberOfGuests:  sub.rsvp.NumberOfGuests,
		RespondedAt:     sub.rsvp.RespondedAt,
	})
}
