package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

// LoggedEvent represents an event that has been journaled.
type LoggedEvent struct {
	Event     Event     `json:"event"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// EventLogger appends events to a JSON-lines journal next to a run's
// outputs, so a run can be audited or its events replayed later.
type EventLogger struct {
	fs      afero.Fs
	logPath string
	mu      sync.Mutex
	file    afero.File
	encoder *json.Encoder
}

// NewEventLogger opens (or creates) the journal at logPath. A nil fs uses
// the OS filesystem.
func NewEventLogger(fs afero.Fs, logPath string) (*EventLogger, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	if err := fs.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, errors.WriteError(logPath, err)
	}

	file, err := fs.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WriteError(logPath, err)
	}

	return &EventLogger{
		fs:      fs,
		logPath: logPath,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// Path returns the journal location.
func (l *EventLogger) Path() string {
	return l.logPath
}

// Log appends an event to the journal.
func (l *EventLogger) Log(topic string, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New(errors.CodeUnavailable, "event logger closed")
	}

	loggedEvent := LoggedEvent{
		Event:     event,
		Topic:     topic,
		Timestamp: time.Now(),
	}
	if err := l.encoder.Encode(loggedEvent); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// ReadEvents reads the journal at path. Events after since are returned in
// file order; at most limit when limit > 0. A missing journal is empty.
func ReadEvents(fs afero.Fs, path string, since time.Time, limit int) ([]LoggedEvent, error) {
	file, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []LoggedEvent{}, nil
		}
		return nil, errors.LoadError(path, err)
	}
	defer file.Close()

	events := []LoggedEvent{}
	scanner := bufio.NewScanner(file)

	const maxScanTokenSize = 1024 * 1024 // 1MB
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		var loggedEvent LoggedEvent
		if err := json.Unmarshal(scanner.Bytes(), &loggedEvent); err != nil {
			// Skip malformed lines
			continue
		}

		if loggedEvent.Timestamp.After(since) {
			events = append(events, loggedEvent)
			if limit > 0 && len(events) >= limit {
				break
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.LoadError(path, err)
	}
	return events, nil
}

// Replay publishes every journaled event after since to bus, in order.
func Replay(ctx context.Context, fs afero.Fs, path string, bus Bus, since time.Time) (int, error) {
	events, err := ReadEvents(fs, path, since, 0)
	if err != nil {
		return 0, err
	}

	for i, loggedEvent := range events {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := bus.Publish(ctx, loggedEvent.Topic, loggedEvent.Event); err != nil {
			return i, fmt.Errorf("failed to replay event %s: %w", loggedEvent.Event.ID, err)
		}
	}
	return len(events), nil
}

// Close closes the journal.
func (l *EventLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.encoder = nil
	if err != nil {
		return errors.WriteError(l.logPath, err)
	}
	return nil
}
