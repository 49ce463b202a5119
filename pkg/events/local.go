package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/google/uuid"
)

// LocalBus delivers events in-process. It stands in for NATS when no URL is
// configured and in tests. Delivery is synchronous.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(*Message)
	closed   bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]func(*Message))}
}

func (b *LocalBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus closed")
	}
	handlers := append([]func(*Message){}, b.handlers[subject]...)
	b.mu.RUnlock()

	logger.DebugContext(ctx, "Publishing local event", "subject", subject, "subscribers", len(handlers))

	msg := &Message{Subject: subject, Data: payload, Timestamp: time.Now(), ID: uuid.NewString()}
	for _, h := range handlers {
		h(msg)
	}
	return nil
}

func (b *LocalBus) Subscribe(subject string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = append(b.handlers[subject], handler)
	return nil
}

// QueueSubscribe behaves like Subscribe; a single process is its own queue group.
func (b *LocalBus) QueueSubscribe(subject, _ string, handler func(msg *Message)) error {
	return b.Subscribe(subject, handler)
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
