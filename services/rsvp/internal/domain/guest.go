package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/utils"
	"github.com/google/uuid"
)

type Guest struct {
	ID            uuid.UUID  `json:"id"`
	InvitationID  uuid.UUID  `json:"invitation_id"`
	PersonalToken string     `json:"personal_token"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	PlusOne       bool       `json:"plus_one"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	LinkID        *uuid.UUID `json:"link_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (g *Guest) IsUsed() bool {
	return g.UsedAt != nil
}

func (g *Guest) FullName() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}

// PersonalInfo is what a recipient of a shareable link provides about themselves.
type PersonalInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
}

// Normalize trims and validates the contact fields in place.
func (p *PersonalInfo) Normalize() error {
	p.FirstName = utils.NormalizeString(p.FirstName)
	p.LastName = utils.NormalizeString(p.LastName)
	p.Phone = utils.NormalizePhone(p.Phone)
	p.Email = utils.NormalizeEmail(p.Email)

	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("%w: first_name and last_name are required", ErrInvalidInput)
	}
	if !utils.IsValidPhone(p.Phone) {
		return fmt.Errorf("%w: phone is invalid", ErrInvalidInput)
	}
	if p.Email != "" && !utils.IsValidEmail(p.Email) {
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	return nil
}

// GuestRequest is the owner's input when adding a named guest.
type GuestRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	PlusOne   bool   `json:"plus_one"`
}

func (r *GuestRequest) Normalize() error {
	r.FirstName = utils.NormalizeString(r.FirstName)
	r.LastName = utils.NormalizeString(r.LastName)
	r.Phone = utils.NormalizePhone(r.Phone)
	r.Email = utils.NormalizeEmail(r.Email)

	if r.FirstName == "" {
		return fmt.Errorf("%w: first_name is required", ErrInvalidInput)
	}
	if r.Phone != "" && !utils.IsValidPhone(r.Phone) {
		return fmt.Errorf("%w: phone is invalid", ErrInvalidInput)
	}
	if r.Email != "" && !utils.IsValidEmail(r.Email) {
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	return nil
}
