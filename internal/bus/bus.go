// Package bus announces pipeline milestones (a compatibility table computed,
// a qrel file written) to whoever listens: an in-process subscriber or a
// Kafka topic consumed by downstream evaluation jobs.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type (e.g., "compat.computed").
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// CorrelationID is the run id shared by every event of one run.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// Event types. Topics are the type behind the configured prefix.
const (
	TypeCompatComputed = "compat.computed"
	TypeQrelsWritten   = "qrels.written"
	TypeRunCompleted   = "run.completed"
)

// Source is the default event source.
const Source = "kgeval"

// NewEvent builds an event of the given type for run runID.
func NewEvent(eventType, runID string, payload any) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        Source,
		Timestamp:     time.Now().UnixMilli(),
		CorrelationID: runID,
		Payload:       payload,
	}
}

// Topic joins prefix and event type: Topic("kge", TypeQrelsWritten) is
// "kge.qrels.written".
func Topic(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// CompatPayload describes a compatibility table made available to a run.
type CompatPayload struct {
	Dataset    string  `json:"dataset"`
	Key        string  `json:"key"`
	Method     string  `json:"method"`
	Threshold  float64 `json:"threshold"`
	Relations  int     `json:"relations"`
	Links      int     `json:"links"`
	Cached     bool    `json:"cached"`
	DurationMs int64   `json:"duration_ms"`
}

// QrelsPayload describes one written qrel file.
type QrelsPayload struct {
	Dataset string `json:"dataset"`
	Policy  string `json:"policy"`
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
}

// RunPayload closes a run.
type RunPayload struct {
	Dataset    string `json:"dataset"`
	Manifest   string `json:"manifest"`
	Triples    int    `json:"triples"`
	Queries    int    `json:"queries"`
	DurationMs int64  `json:"duration_ms"`
}
