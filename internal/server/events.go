package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// ProtocolVersion identifies the server contract version exposed via /health.
	ProtocolVersion = "1.0.0"
	// EventSchemaVersion is the currently supported inbound event version.
	EventSchemaVersion = 1

	defaultDedupeWindow = 1024
)

// Event is a gameplay notification posted by the client, such as a level
// start or completion. Events are processed at background priority.
type Event struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	ClientTime time.Time       `json:"client_time"`
	ServerTime time.Time       `json:"server_time"`
	SessionID  string          `json:"session_id"`
	LevelID    string          `json:"level_id"`
	Variant    string          `json:"variant,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Normalize applies defaults and canonical formatting before validation.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Version == 0 {
		e.Version = EventSchemaVersion
	}
	e.EventID = strings.TrimSpace(e.EventID)
	e.Type = strings.TrimSpace(e.Type)
	e.SessionID = strings.TrimSpace(e.SessionID)
	e.LevelID = strings.TrimSpace(e.LevelID)
	e.Variant = strings.ToLower(strings.TrimSpace(e.Variant))
}

// StampServerTime overwrites ServerTime with the supplied clock reading (UTC).
func (e *Event) StampServerTime(now time.Time) {
	if e == nil {
		return
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	e.ServerTime = now.UTC()
}

// Validate enforces baseline schema requirements for incoming events.
func (e Event) Validate() error {
	if e.Version != EventSchemaVersion {
		return fmt.Errorf("version %d not supported", e.Version)
	}
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	if e.Type == "" {
		return errors.New("type is required")
	}
	if e.SessionID == "" {
		return errors.New("session_id is required")
	}
	if e.LevelID == "" {
		return errors.New("level_id is required")
	}
	return nil
}

// EventProcessor consumes validated events.
type EventProcessor interface {
	HandleEvent(Event) error
}

// EventProcessorFunc adapts a function into an EventProcessor.
type EventProcessorFunc func(Event) error

// HandleEvent executes f(e).
func (f EventProcessorFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// dedupe remembers the most recent event IDs so client retries are
// processed once.
type dedupe struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	order  []string
	window int
}

func newDedupe(window int) *dedupe {
	if window <= 0 {
		window = defaultDedupeWindow
	}
	return &dedupe{seen: map[string]struct{}{}, order: make([]string, 0, window), window: window}
}

// first records id and reports whether it had not been seen.
func (d *dedupe) first(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	if len(d.order) > d.window {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return true
}

// forget drops id so a retry of an event that was never processed is
// accepted again.
func (d *dedupe) forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	for i, seen := range d.order {
		if seen == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Logger records server status information. It matches logging.Logger's
// Printf signature.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type eventResponse struct {
	Status     string    `json:"status"`
	TaskID     string    `json:"task_id,omitempty"`
	ServerTime time.Time `json:"server_time"`
}
