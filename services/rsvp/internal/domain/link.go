package domain

import (
	"time"

	"github.com/google/uuid"
)

type LinkStatus string

const (
	LinkShared LinkStatus = "SHARED"
	LinkUsed   LinkStatus = "USED"
)

func ParseLinkStatus(s string) (LinkStatus, bool) {
	switch LinkStatus(s) {
	case LinkShared, LinkUsed:
		return LinkStatus(s), true
	default:
		return "", false
	}
}

type ShareableLink struct {
	ID           uuid.UUID  `json:"id"`
	InvitationID uuid.UUID  `json:"invitation_id"`
	Token        string     `json:"token"`
	Status       LinkStatus `json:"status"`
	IsActive     bool       `json:"is_active"`
	MaxUses      int        `json:"max_uses"`
	UsedCount    int        `json:"used_count"`
	AllowPlusOne bool       `json:"allow_plus_one"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	GuestID      *uuid.UUID `json:"guest_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (l *ShareableLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

func (l *ShareableLink) Remaining() int {
	if l.UsedCount >= l.MaxUses {
		return 0
	}
	return l.MaxUses - l.UsedCount
}

// Reserves reports whether the link still holds unclaimed quota.
func (l *ShareableLink) Reserves(now time.Time) bool {
	return l.IsActive && !l.IsExpired(now) && l.Remaining() > 0
}

// LinkRequest is the owner's input when issuing a shareable link.
type LinkRequest struct {
	InvitationID uuid.UUID  `json:"invitation_id"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	AllowPlusOne bool       `json:"allow_plus_one"`
}

// LinkContext is the result of resolving a shareable token.
type LinkContext struct {
	Link       ShareableLink `json:"link"`
	Invitation Invitation    `json:"invitation"`
}

// LinkView is the public shape of a link, as returned by the links API.
type LinkView struct {
	Token        string     `json:"token"`
	Status       LinkStatus `json:"status"`
	IsActive     bool       `json:"is_active"`
	MaxUses      int        `json:"max_uses"`
	UsedCount    int        `json:"used_count"`
	AllowPlusOne bool       `json:"allow_plus_one"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (l *ShareableLink) View() LinkView {
	return LinkView{
		Token:        l.Token,
		Status:       l.Status,
		IsActive:     l.IsActive,
		MaxUses:      l.MaxUses,
		UsedCount:    l.UsedCount,
		AllowPlusOne: l.AllowPlusOne,
		ExpiresAt:    l.ExpiresAt,
		CreatedAt:    l.CreatedAt,
	}
}
