// Package audit records what cleanup actually did to cloud and local
// state, so a destructive run can be reconstructed afterwards.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the subsystem an event touched
type EventType string

const (
	// EventTypeTerraform covers terraform destroy activity
	EventTypeTerraform EventType = "terraform"
	// EventTypeAWS covers direct AWS API deletions
	EventTypeAWS EventType = "aws"
	// EventTypeVPN covers local WireGuard teardown
	EventTypeVPN EventType = "vpn"
	// EventTypeSSH covers ssh config and known_hosts edits
	EventTypeSSH EventType = "ssh"
)

// EventAction represents the action taken
type EventAction string

const (
	// ActionScan indicates a read-only discovery pass
	ActionScan EventAction = "scan"
	// ActionDelete indicates a resource or file was removed
	ActionDelete EventAction = "delete"
	// ActionSkip indicates the operator declined or nothing applied
	ActionSkip EventAction = "skip"
)

// Event is a single audit log entry
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// Type is the subsystem touched
	Type EventType `json:"type"`
	// Action is what was done
	Action EventAction `json:"action"`
	// Resource identifies the affected resource or file
	Resource string `json:"resource"`
	// Description is a human-readable description
	Description string `json:"description"`
	// RunID links every event of one cleanup invocation
	RunID string `json:"run_id"`
	// Success indicates if the action succeeded
	Success bool `json:"success"`
	// ErrorMessage contains error details if failed
	ErrorMessage string `json:"error_message,omitempty"`
}

// Export is the serialized form of an audit log
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	RunID      string    `json:"run_id"`
	Events     []Event   `json:"events"`
}

// Logger collects events for one cleanup run
type Logger struct {
	mu     sync.Mutex
	runID  string
	events []Event
}

// NewLogger creates a Logger with a fresh run ID
func NewLogger() *Logger {
	return &Logger{runID: uuid.New().String()}
}

// RunID returns the correlation ID of this run
func (l *Logger) RunID() string {
	return l.runID
}

// Log records an event, filling in ID, timestamp and run ID
func (l *Logger) Log(eventType EventType, action EventAction, resource, description string, success bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	event := Event{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		Type:        eventType,
		Action:      action,
		Resource:    resource,
		Description: description,
		RunID:       l.runID,
		Success:     success,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	l.events = append(l.events, event)
}

// List returns all events in chronological order
func (l *Logger) List() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]Event, len(l.events))
	copy(events, l.events)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// FailureCount returns how many events failed
func (l *Logger) FailureCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, event := range l.events {
		if !event.Success {
			n++
		}
	}
	return n
}

// SaveToDir writes the audit log as audit-<runID>.json under dir and
// returns the file path
func (l *Logger) SaveToDir(dir string) (string, error) {
	export := Export{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		RunID:      l.runID,
		Events:     l.List(),
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal audit log: %w", err)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("audit-%s.json", l.runID))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write audit log: %w", err)
	}
	return path, nil
}
