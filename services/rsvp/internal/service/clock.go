package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/google/uuid"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// NewToken returns an opaque bearer token: base36 creation millis, an
// underscore, then the 32 hex digits of a random UUID.
func NewToken(now time.Time) string {
	id := uuid.New()
	return strconv.FormatInt(now.UnixMilli(), 36) + "_" + strings.ReplaceAll(id.String(), "-", "")
}

func personalURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/rsvp/" + token
}

// publish is fire-and-forget; a failed publish never fails the operation.
func publish(ctx context.Context, bus events.Publisher, subject string, payload any) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}
