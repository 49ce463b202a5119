package mailer

import (
	"context"
	"sync"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
)

// DevMailer logs emails instead of sending them and keeps the last few for
// inspection.
type DevMailer struct {
	mu   sync.Mutex
	sent []Email
}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

const devMailerKeep = 50

func (d *DevMailer) Send(ctx context.Context, e Email) error {
	logger.InfoContext(ctx, "[DEV MAIL] email",
		"to", e.ToEmail,
		"name", e.ToName,
		"subject", e.Subject,
		"text", e.Text,
	)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, e)
	if len(d.sent) > devMailerKeep {
		d.sent = d.sent[len(d.sent)-devMailerKeep:]
	}
	return nil
}

// Sent returns a copy of the retained emails, oldest first.
func (d *DevMailer) Sent() []Email {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Email(nil), d.sent...)
}
