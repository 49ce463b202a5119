package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type RSVPStatus string

const (
	RSVPPending   RSVPStatus = "PENDING"
	RSVPConfirmed RSVPStatus = "CONFIRMED"
	RSVPDeclined  RSVPStatus = "DECLINED"
)

func ParseRSVPStatus(s string) (RSVPStatus, bool) {
	switch RSVPStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case RSVPPending:
		return RSVPPending, true
	case RSVPConfirmed:
		return RSVPConfirmed, true
	case RSVPDeclined:
		return RSVPDeclined, true
	default:
		return "", false
	}
}

// Business Rules
const (
	MinPartySize     = 1
	MaxPartySize     = 20
	MaxMessageLength = 2000
)

type RSVP struct {
	ID                 uuid.UUID  `json:"id"`
	GuestID            uuid.UUID  `json:"guest_id"`
	Status             RSVPStatus `json:"status"`
	NumberOfGuests     int        `json:"number_of_guests"`
	AttendingCeremony  bool       `json:"attending_ceremony"`
	AttendingReception bool       `json:"attending_reception"`
	Message            string     `json:"message"`
	RespondedAt        time.Time  `json:"responded_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Response is a guest's attendance answer.
type Response struct {
	Status             RSVPStatus `json:"status"`
	NumberOfGuests     int        `json:"number_of_guests"`
	AttendingCeremony  bool       `json:"attending_ceremony"`
	AttendingReception bool       `json:"attending_reception"`
	Message            string     `json:"message"`
}

// Normalize validates the response and applies defaults in place.
// A declined response always counts as a party of one and attends nothing.
func (r *Response) Normalize() error {
	st, ok := ParseRSVPStatus(string(r.Status))
	if !ok {
		return fmt.Errorf("%w: status must be PENDING, CONFIRMED or DECLINED", ErrInvalidInput)
	}
	r.Status = st
	r.Message = strings.TrimSpace(r.Message)
	if utf8.RuneCountInString(r.Message) > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, MaxMessageLength)
	}

	if r.NumberOfGuests == 0 {
		r.NumberOfGuests = MinPartySize
	}
	if r.NumberOfGuests < MinPartySize || r.NumberOfGuests > MaxPartySize {
		return fmt.Errorf("%w: number_of_guests must be between %d and %d", ErrInvalidInput, MinPartySize, MaxPartySize)
	}
	if r.Status == RSVPDeclined {
		r.NumberOfGuests = MinPartySize
		r.AttendingCeremony = false
		r.AttendingReception = false
	}
	return nil
}

// CheckPartySize enforces the plus-one rule for a guest.
func (r *Response) CheckPartySize(g *Guest) error {
	if r.NumberOfGuests > 1 && !g.PlusOne {
		return ErrPartySizeNotAllowed
	}
	return nil
}

// ResponsePatch is a partial update of an existing response.
type ResponsePatch struct {
	Status             *RSVPStatus `json:"status,omitempty"`
	NumberOfGuests     *int        `json:"number_of_guests,omitempty"`
	AttendingCeremony  *bool       `json:"attending_ceremony,omitempty"`
	AttendingReception *bool       `json:"attending_reception,omitempty"`
	Message            *string     `json:"message,omitempty"`
}

// Validate rejects values Normalize would otherwise replace with defaults.
func (p ResponsePatch) Validate() error {
	if p.NumberOfGuests != nil && *p.NumberOfGuests < MinPartySize {
		return fmt.Errorf("%w: number_of_guests must be at least %d", ErrInvalidInput, MinPartySize)
	}
	return nil
}

// Apply merges the patch over the stored RSVP and returns the resulting response.
func (p ResponsePatch) Apply(existing *RSVP) Response {
	out := Response{
		Status:             existing.Status,
		NumberOfGuests:     existing.NumberOfGuests,
		AttendingCeremony:  existing.AttendingCeremony,
		AttendingReception: existing.AttendingReception,
		Message:            existing.Message,
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.NumberOfGuests != nil {
		out.NumberOfGuests = *p.NumberOfGuests
	}
	if p.AttendingCeremony != nil {
		out.AttendingCeremony = *p.AttendingCeremony
	}
	if p.AttendingReception != nil {
		out.AttendingReception = *p.AttendingReception
	}
	if p.Message != nil {
		out.Message = *p.Message
	}
	return out
}

func (p ResponsePatch) IsEmpty() bool {
	return p.Status == nil && p.NumberOfGuests == nil && p.AttendingCeremony == nil &&
		p.AttendingReception == nil && p.Message == nil
}

// PersonalAccess is what a personal token holder sees.
type PersonalAccess struct {
	Invitation PublicInvitation `json:"invitation"`
	Guest      Guest            `json:"guest"`
	RSVP       *RSVP            `json:"rsvp,omitempty"`
}

// LinkSubmission is the outcome of answering through a shareable link: the
// guest identity minted for the respondent and their RSVP.
type LinkSubmission struct {
	Guest Guest `json:"guest"`
	RSVP  RSVP  `json:"rsvp"`
}
