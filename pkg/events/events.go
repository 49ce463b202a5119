package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	return n.conn.PublishMsg(msg)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(fromNATS(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(fromNATS(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func fromNATS(msg *nats.Msg) *Message {
	id := ""
	if msg.Header != nil {
		id = msg.Header.Get(nats.MsgIdHdr)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
		ID:        id,
	}
}

// Decode unmarshals a message payload into v.
func Decode(msg *Message, v interface{}) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", msg.Subject, err)
	}
	return nil
}

// Event types and subjects
const (
	// Invitation events
	InvitationPublished = "invitation.published"
	InvitationArchived  = "invitation.archived"
	InvitationDeleted   = "invitation.deleted"

	// Shareable link events
	LinkIssued   = "link.issued"
	LinkConsumed = "link.consumed"
	LinkDisabled = "link.disabled"
	LinksSwept   = "link.swept"

	// Guest and RSVP events
	GuestAdded    = "guest.added"
	RSVPSubmitted = "rsvp.submitted"
	RSVPUpdated   = "rsvp.updated"

	// Notification events
	NotifySend = "notify.send"
)

// Event payloads
type InvitationEvent struct {
	InvitationID uuid.UUID `json:"invitation_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type LinkIssuedEvent struct {
	InvitationID uuid.UUID  `json:"invitation_id"`
	LinkID       uuid.UUID  `json:"link_id"`
	MaxUses      int        `json:"max_uses"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IssuedAt     time.Time  `json:"issued_at"`
}

type LinkConsumedEvent struct {
	InvitationID uuid.UUID `json:"invitation_id"`
	LinkID       uuid.UUID `json:"link_id"`
	GuestID      uuid.UUID `json:"guest_id"`
	UsedCount    int       `json:"used_count"`
	MaxUses      int       `json:"max_uses"`
	ConsumedAt   time.Time `json:"consumed_at"`
}

type LinkDisabledEvent struct {
	InvitationID uuid.UUID `json:"invitation_id"`
	LinkID       uuid.UUID `json:"link_id"`
	DisabledAt   time.Time `json:"disabled_at"`
}

type LinksSweptEvent struct {
	Deleted int64     `json:"deleted"`
	Cutoff  time.Time `json:"cutoff"`
	SweptAt time.Time `json:"swept_at"`
}

type GuestAddedEvent struct {
	InvitationID uuid.UUID  `json:"invitation_id"`
	GuestID      uuid.UUID  `json:"guest_id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email,omitempty"`
	PersonalURL  string     `json:"personal_url"`
	LinkID       *uuid.UUID `json:"link_id,omitempty"`
	AddedAt      time.Time  `json:"added_at"`
}

type RSVPEvent struct {
	InvitationID    uuid.UUID `json:"invitation_id"`
	InvitationTitle string    `json:"invitation_title"`
	OwnerID         uuid.UUID `json:"owner_id"`
	GuestID         uuid.UUID `json:"guest_id"`
	GuestName       string    `json:"guest_name"`
	GuestEmail      string    `json:"guest_email,omitempty"`
	Status          string    `json:"status"`
	NumberOfGuests  int       `json:"number_of_guests"`
	RespondedAt     time.Time `json:"responded_at"`
}

type NotificationEvent struct {
	Type      string                 `json:"type"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
}
