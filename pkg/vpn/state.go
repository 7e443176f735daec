// Package vpn manages the workstation side of the WireGuard tunnel: the
// persisted state record, client config generation, and teardown.
package vpn

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNoRecord indicates no state record exists for the project.
var ErrNoRecord = errors.New("no vpn state record")

// StateRecord tracks the one interface this tool brought up. It is the
// authoritative answer to "which interface is ours" during cleanup.
type StateRecord struct {
	InterfaceName string    `json:"interface_name"`
	EndpointIP    string    `json:"endpoint_ip"`
	CreatedAt     time.Time `json:"created_at"`
}

// StateStore persists the per-project StateRecord as JSON
type StateStore struct {
	dataDir string
	project string
	mu      sync.Mutex
}

// NewStateStore creates a StateStore rooted at dataDir. An empty dataDir
// defaults to ~/.bastion-vpn.
func NewStateStore(dataDir, project string) (*StateStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".bastion-vpn")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &StateStore{dataDir: dataDir, project: project}, nil
}

// Path returns the state file path for the project
func (s *StateStore) Path() string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%s-vpn.json", s.project))
}

// Load reads the state record. Returns ErrNoRecord if none exists.
func (s *StateStore) Load() (*StateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var record StateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if record.InterfaceName == "" {
		return nil, fmt.Errorf("state file %s has no interface name", s.Path())
	}

	return &record, nil
}

// Save writes the state record, stamping CreatedAt if unset
func (s *StateStore) Save(record *StateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Delete removes the state record. Deleting a missing record is not an
// error.
func (s *StateStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}
