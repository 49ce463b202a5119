package mailer

import (
	"context"
	"fmt"
	"html"
)

// Email is one outgoing message.
type Email struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Service sends email. Implementations must be safe for concurrent use.
type Service interface {
	Send(ctx context.Context, e Email) error
}

// GuestInvite is the message carrying a guest's personal RSVP link.
func GuestInvite(toEmail, toName, personalURL string) Email {
	name := toName
	if name == "" {
		name = "there"
	}
	return Email{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: "You're invited",
		Text:    fmt.Sprintf("Hi %s,\n\nYou're invited! Open your personal link to respond: %s\n\nThis link is just for you.", name, personalURL),
		HTML: fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>You're invited! Use your personal link to respond:</p>
		<p><a href="%s" style="background-color: #4CAF50; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Respond</a></p>
		<p>This link is just for you, please don't forward it.</p>
	`, html.EscapeString(name), html.EscapeString(personalURL)),
	}
}

// PersonalLink gives a link respondent the personal link to change their answer.
func PersonalLink(toEmail, toName, personalURL string) Email {
	return Email{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: "Your personal RSVP link",
		Text:    fmt.Sprintf("Hi %s,\n\nThanks for responding. To change your answer later, use: %s", toName, personalURL),
		HTML: fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Thanks for responding. To change your answer later, use <a href="%s">your personal link</a>.</p>
	`, html.EscapeString(toName), html.EscapeString(personalURL)),
	}
}

// RSVPReceipt confirms a recorded or changed response to the guest.
func RSVPReceipt(toEmail, toName, title, status string, partySize int, updated bool) Email {
	verb := "received"
	if updated {
		verb = "updated"
	}
	return Email{
		ToEmail: toEmail,
		ToName:  toName,
		Subject: fmt.Sprintf("Your RSVP for %s was %s", title, verb),
		Text:    fmt.Sprintf("Hi %s,\n\nYour response to %s was %s.\nStatus: %s\nParty size: %d", toName, title, verb, status, partySize),
		HTML: fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Your response to <strong>%s</strong> was %s.</p>
		<p>Status: <strong>%s</strong><br>Party size: %d</p>
	`, html.EscapeString(toName), html.EscapeString(title), verb, html.EscapeString(status), partySize),
	}
}
