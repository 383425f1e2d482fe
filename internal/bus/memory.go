package bus

import (
	"context"
	"sync"
	"time"

	kgctx "github.com/ricesearch/kgeval/internal/pkg/context"
	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

// MemoryBus is an in-process event bus.
type MemoryBus struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	closed     bool
	log        *logger.Logger
	inflightWg sync.WaitGroup // Tracks in-flight handlers for graceful shutdown
}

// NewMemoryBus creates a new in-memory event bus.
func NewMemoryBus(log *logger.Logger) *MemoryBus {
	if log == nil {
		log = logger.Default()
	}
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Publish publishes an event to all subscribers of a topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	handlers, ok := b.handlers[topic]
	if !ok || len(handlers) == 0 {
		return nil // No subscribers, not an error
	}

	// Fan out to all handlers with in-flight tracking
	for _, handler := range handlers {
		b.inflightWg.Add(1)
		go func(h Handler) {
			defer b.inflightWg.Done()
			if err := h(ctx, event); err != nil {
				b.log.WithError(err).Warn("Event handler failed",
					"topic", topic,
					"event_id", event.ID,
					"run_id", kgctx.GetRunID(ctx),
				)
			}
		}(handler)
	}

	return nil
}

// Subscribe registers a handler for events on a topic.
func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Close closes the bus, waiting for in-flight handlers to complete.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	if !b.DrainTimeout(10 * time.Second) {
		b.log.Warn("Event drain timeout reached, some handlers may not have completed")
	}

	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()

	return nil
}

// DrainTimeout waits for in-flight handlers to complete with custom timeout.
func (b *MemoryBus) DrainTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.inflightWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// NopBus drops every event. It backs the "none" bus type.
type NopBus struct{}

func (NopBus) Publish(context.Context, string, Event) error { return nil }

func (NopBus) Subscribe(context.Context, string, Handler) error { return nil }

func (NopBus) Close() error { return nil }
