package subscriber

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/services/notify/internal/mailer"
)

const queueGroup = "notify"

// Subscriber turns invitation events into emails.
type Subscriber struct {
	mail    mailer.Service
	timeout time.Duration
}

func New(mail mailer.Service) *Subscriber {
	return &Subscriber{mail: mail, timeout: 15 * time.Second}
}

// Register subscribes every handler on bus under the notify queue group, so
// replicas share the work.
func (s *Subscriber) Register(bus events.Subscriber) error {
	handlers := map[string]func(context.Context, *events.Message) error{
		events.GuestAdded:    s.guestAdded,
		events.RSVPSubmitted: s.rsvp(false),
		events.RSVPUpdated:   s.rsvp(true),
		events.NotifySend:    s.notify,
	}
	for subject, handle := range handlers {
		if err := bus.QueueSubscribe(subject, queueGroup, s.wrap(handle)); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	return nil
}

func (s *Subscriber) wrap(handle func(context.Context, *events.Message) error) func(*events.Message) {
	return func(msg *events.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		ctx = context.WithValue(ctx, logger.ServiceKey, "notify")

		if err := handle(ctx, msg); err != nil {
			logger.ErrorContext(ctx, "Failed to handle event", "subject", msg.Subject, "event_id", msg.ID, "error", err)
		}
	}
}

func (s *Subscriber) guestAdded(ctx context.Context, msg *events.Message) error {
	var e events.GuestAddedEvent
	if err := events.Decode(msg, &e); err != nil {
		return err
	}
	if e.Email == "" {
		return nil
	}
	name := strings.TrimSpace(e.FirstName + " " + e.LastName)
	// Link respondents already answered; they get their link for later changes.
	if e.LinkID != nil {
		return s.mail.Send(ctx, mailer.PersonalLink(e.Email, name, e.PersonalURL))
	}
	return s.mail.Send(ctx, mailer.GuestInvite(e.Email, name, e.PersonalURL))
}

func (s *Subscriber) rsvp(updated bool) func(context.Context, *events.Message) error {
	return func(ctx context.Context, msg *events.Message) error {
		var e events.RSVPEvent
		if err := events.Decode(msg, &e); err != nil {
			return err
		}
		if e.GuestEmail == "" {
			return nil
		}
		return s.mail.Send(ctx, mailer.RSVPReceipt(e.GuestEmail, e.GuestName, e.InvitationTitle, e.Status, e.NumberOfGuests, updated))
	}
}

// notify sends an ad hoc message. Data may carry "text", "html" and "name".
func (s *Subscriber) notify(ctx context.Context, msg *events.Message) error {
	var e events.NotificationEvent
	if err := events.Decode(msg, &e); err != nil {
		return err
	}
	if e.Type != "" && e.Type != "email" {
		logger.DebugContext(ctx, "ignoring notification", "type", e.Type)
		return nil
	}
	if e.Recipient == "" {
		return fmt.Errorf("notification without recipient")
	}

	str := func(key string) string {
		v, _ := e.Data[key].(string)
		return v
	}
	return s.mail.Send(ctx, mailer.Email{
		ToEmail: e.Recipient,
		ToName:  str("name"),
		Subject: e.Subject,
		Text:    str("text"),
		HTML:    str("html"),
	})
}
