package domain

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationDraft     InvitationStatus = "DRAFT"
	InvitationPublished InvitationStatus = "PUBLISHED"
	InvitationArchived  InvitationStatus = "ARCHIVED"
)

func ParseInvitationStatus(s string) (InvitationStatus, bool) {
	switch InvitationStatus(s) {
	case InvitationDraft, InvitationPublished, InvitationArchived:
		return InvitationStatus(s), true
	default:
		return "", false
	}
}

// CanTransition reports whether an invitation may move from s to next.
func (s InvitationStatus) CanTransition(next InvitationStatus) bool {
	switch s {
	case InvitationDraft:
		return next == InvitationPublished
	case InvitationPublished:
		return next == InvitationArchived
	case InvitationArchived:
		return next == InvitationPublished
	default:
		return false
	}
}

type Invitation struct {
	ID        uuid.UUID        `json:"id"`
	OwnerID   uuid.UUID        `json:"owner_id"`
	Title     string           `json:"title"`
	Status    InvitationStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (i *Invitation) IsPublished() bool {
	return i.Status == InvitationPublished
}

// InvitationSummary is the owner's view of an invitation.
type InvitationSummary struct {
	Invitation
	GuestCount     int `json:"guest_count"`
	ShareableCount int `json:"shareable_guest_count"`
	LinkCount      int `json:"link_count"`
}

// PublicInvitation is what a token holder is allowed to see.
type PublicInvitation struct {
	ID     uuid.UUID        `json:"id"`
	Title  string           `json:"title"`
	Status InvitationStatus `json:"status"`
}

func (i *Invitation) Public() PublicInvitation {
	return PublicInvitation{ID: i.ID, Title: i.Title, Status: i.Status}
}
