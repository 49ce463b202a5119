package mailer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

var ErrNotConfigured = errors.New("mailersend not configured")

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) Send(ctx context.Context, e Email) error {
	if !m.enabled {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: e.ToName, Email: e.ToEmail}})
	msg.SetSubject(e.Subject)

	if strings.TrimSpace(e.Text) != "" {
		msg.SetText(e.Text)
	}
	if strings.TrimSpace(e.HTML) != "" {
		msg.SetHTML(e.HTML)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}
