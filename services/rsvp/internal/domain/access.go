package domain

// TokenKind tells which namespace a token was found in.
type TokenKind string

const (
	TokenPersonal  TokenKind = "personal"
	TokenShareable TokenKind = "shareable"
)

// AccessContext is the gateway's answer for an arbitrary token.
type AccessContext struct {
	Kind       TokenKind        `json:"kind"`
	Invitation PublicInvitation `json:"invitation"`
	Guest      *Guest           `json:"guest,omitempty"`
	RSVP       *RSVP            `json:"rsvp,omitempty"`
	Link       *LinkView        `json:"link,omitempty"`
}
