// Package events provides the in-process publisher used by the core to hand
// domain events to external delivery components.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/escolaris/academia-api/internal/models"
)

// Publisher is the narrow interface services depend on.
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

// Handler consumes a published event. Handlers must not block; slow delivery
// belongs in the subscriber, not the bus.
type Handler func(ctx context.Context, event models.Event)

// Bus is a synchronous in-memory event dispatcher. Subscribers are registered
// at startup; Publish never fails and never aborts the emitting operation.
type Bus struct {
	mu       sync.RWMutex
	handlers map[models.EventType][]Handler
	logger   *zap.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{handlers: make(map[models.EventType][]Handler), logger: logger}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType models.EventType, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish dispatches the event to all subscribers of its type.
func (b *Bus) Publish(ctx context.Context, event models.Event) {
	if event == nil {
		return
	}
	b.mu.RLock()
	handlers := b.handlers[event.Type()]
	b.mu.RUnlock()

	b.logger.Debug("event published", zap.String("type", string(event.Type())), zap.Int("subscribers", len(handlers)))
	for _, handler := range handlers {
		handler(ctx, event)
	}
}

// Nop returns a publisher that drops every event. Useful in tests.
func Nop() Publisher { return nopPublisher{} }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) {}
