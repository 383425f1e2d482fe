package bus

import (
	"context"

	"github.com/ricesearch/kgeval/internal/pkg/logger"
)

// LoggedBus wraps another Bus and journals every published event.
type LoggedBus struct {
	inner       Bus
	eventLogger *EventLogger
	log         *logger.Logger
}

// NewLoggedBus creates a new logged bus that wraps an inner bus.
// Events are journaled before being published to the inner bus.
func NewLoggedBus(inner Bus, eventLogger *EventLogger, log *logger.Logger) *LoggedBus {
	if log == nil {
		log = logger.Default()
	}
	return &LoggedBus{
		inner:       inner,
		eventLogger: eventLogger,
		log:         log,
	}
}

// Publish journals the event and then delegates to the inner bus. A journal
// failure is logged and does not block publishing.
func (b *LoggedBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := b.eventLogger.Log(topic, event); err != nil {
		b.log.WithError(err).Warn("Failed to journal event", "topic", topic)
	}
	return b.inner.Publish(ctx, topic, event)
}

// Subscribe delegates to the inner bus.
func (b *LoggedBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.inner.Subscribe(ctx, topic, handler)
}

// Close closes both the event logger and the inner bus.
func (b *LoggedBus) Close() error {
	if err := b.eventLogger.Close(); err != nil {
		b.log.WithError(err).Warn("Failed to close event journal")
	}
	return b.inner.Close()
}
