// Package journal
package journal

import (
	"sync"
	"time"
)

// Event types recorded over a run's lifecycle.
const (
	EventRunStarted  = "run_started"
	EventRunFinished = "run_finished"
	EventError       = "error"
)

// Event represents a journaled event.
type Event struct {
	Time        time.Time
	Type        string
	Description string
	Data        map[string]any
}

// Journaler interface for journaling events.
type Journaler interface {
	LogEvent(event Event) error
	GetEvents(eventType string, start, end time.Time) ([]Event, error)
}

// Memory is an in-process Journaler used in tests and when no storage
// backend is configured.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

// LogEvent appends the event to the in-memory log.
func (m *Memory) LogEvent(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// GetEvents returns events of the given type with timestamps inside
// [start, end]. An empty type matches every event.
func (m *Memory) GetEvents(eventType string, start, end time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Event
	for _, e := range m.events {
		if eventType != "" && e.Type != eventType {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
