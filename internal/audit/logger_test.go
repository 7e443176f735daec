package audit

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecordsEvents(t *testing.T) {
	logger := NewLogger()
	logger.Log(EventTypeAWS, ActionDelete, "vpc-0abc", "deleted orphaned VPC", true, nil)
	logger.Log(EventTypeVPN, ActionDelete, "homelab-wg0", "stopped tracked interface", false, errors.New("wg-quick missing"))

	events := logger.List()
	require.Len(t, events, 2)

	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.Equal(t, logger.RunID(), events[0].RunID)
	assert.Equal(t, logger.RunID(), events[1].RunID)
	assert.True(t, events[0].Success)
	assert.False(t, events[1].Success)
	assert.Equal(t, "wg-quick missing", events[1].ErrorMessage)
}

func TestFailureCount(t *testing.T) {
	logger := NewLogger()
	assert.Zero(t, logger.FailureCount())

	logger.Log(EventTypeTerraform, ActionDelete, "state", "destroyed", true, nil)
	logger.Log(EventTypeSSH, ActionDelete, "known_hosts", "prune failed", false, errors.New("permission denied"))
	logger.Log(EventTypeAWS, ActionSkip, "nat-0abc", "declined", true, nil)

	assert.Equal(t, 1, logger.FailureCount())
}

func TestSaveToDir(t *testing.T) {
	logger := NewLogger()
	logger.Log(EventTypeAWS, ActionScan, "homelab-", "found 3 orphans", true, nil)

	dir := t.TempDir()
	path, err := logger.SaveToDir(dir)
	require.NoError(t, err)
	assert.Contains(t, path, logger.RunID())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export Export
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, logger.RunID(), export.RunID)
	require.Len(t, export.Events, 1)
	assert.Equal(t, EventTypeAWS, export.Events[0].Type)
}

func TestDistinctRunIDs(t *testing.T) {
	assert.NotEqual(t, NewLogger().RunID(), NewLogger().RunID())
}
