// Package operations tracks CLI operation history in a JSON file under
// the per-user data directory, so past cleanup runs stay inspectable.
package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxEntries is the maximum number of entries per operation type
	DefaultMaxEntries = 50

	historyFileName = "history.json"
)

// CleanupEntry represents a single cleanup run record
type CleanupEntry struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Mode             string    `json:"mode"` // quick, full, ultra, dry-run, check-orphans
	Status           string    `json:"status"`
	StepsOK          int       `json:"stepsOk"`
	StepsSkipped     int       `json:"stepsSkipped"`
	StepsFailed      int       `json:"stepsFailed"`
	OrphansFound     int       `json:"orphansFound,omitempty"`
	ResourcesRemoved int       `json:"resourcesRemoved,omitempty"`
	Duration         string    `json:"duration,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// VPNEntry represents a single local VPN operation record
type VPNEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"` // client-config, down
	Interface string    `json:"interface,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// History holds the recorded operations for one project
type History struct {
	CleanupHistory []CleanupEntry `json:"cleanupHistory"`
	VPNHistory     []VPNEntry     `json:"vpnHistory"`
	MaxEntries     int            `json:"maxEntries"`
	LastUpdated    time.Time      `json:"lastUpdated"`

	path string
	mu   sync.Mutex
}

// NewHistory creates an empty History with default settings
func NewHistory() *History {
	return &History{
		CleanupHistory: make([]CleanupEntry, 0),
		VPNHistory:     make([]VPNEntry, 0),
		MaxEntries:     DefaultMaxEntries,
		LastUpdated:    time.Now().UTC(),
	}
}

// Load reads the history file from dataDir, returning an empty History
// when none exists yet.
func Load(dataDir string) (*History, error) {
	path := filepath.Join(dataDir, historyFileName)

	history := NewHistory()
	history.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return history, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if err := json.Unmarshal(data, history); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	if history.MaxEntries <= 0 {
		history.MaxEntries = DefaultMaxEntries
	}
	history.path = path
	return history, nil
}

// Save writes the history back to disk
func (h *History) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.path == "" {
		return fmt.Errorf("history has no backing file")
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// AddCleanup adds a cleanup entry to the history with FIFO pruning
func (h *History) AddCleanup(entry CleanupEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.CleanupHistory = append(h.CleanupHistory, entry)
	if len(h.CleanupHistory) > h.MaxEntries {
		h.CleanupHistory = h.CleanupHistory[1:]
	}
	h.LastUpdated = time.Now().UTC()
}

// AddVPN adds a VPN entry to the history with FIFO pruning
func (h *History) AddVPN(entry VPNEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.VPNHistory = append(h.VPNHistory, entry)
	if len(h.VPNHistory) > h.MaxEntries {
		h.VPNHistory = h.VPNHistory[1:]
	}
	h.LastUpdated = time.Now().UTC()
}

// GetLatestCleanup returns the most recent cleanup entry or nil
func (h *History) GetLatestCleanup() *CleanupEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.CleanupHistory) == 0 {
		return nil
	}
	return &h.CleanupHistory[len(h.CleanupHistory)-1]
}

// GetLatestVPN returns the most recent VPN entry or nil
func (h *History) GetLatestVPN() *VPNEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.VPNHistory) == 0 {
		return nil
	}
	return &h.VPNHistory[len(h.VPNHistory)-1]
}

// TotalOperations returns the total number of operations recorded
func (h *History) TotalOperations() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.CleanupHistory) + len(h.VPNHistory)
}
