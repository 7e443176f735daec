package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCmd_Structure(t *testing.T) {
	assert.NotNil(t, statusCmd)
	assert.Equal(t, "status", statusCmd.Use)
	assert.NotEmpty(t, statusCmd.Short)
	assert.NotEmpty(t, statusCmd.Long)
	assert.NotEmpty(t, statusCmd.Example)
}

func TestStatusCmd_RunE(t *testing.T) {
	assert.NotNil(t, statusCmd.RunE, "status command should have RunE function")
}

func TestStatusCmd_ReadOnly(t *testing.T) {
	// status takes no flags that could change anything
	assert.False(t, statusCmd.Flags().HasFlags(), "status should define no local flags")
	assert.Contains(t, statusCmd.Long, "Read-only")
}

func TestStatusCmd_RegisteredWithRoot(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "status" {
			found = true
			break
		}
	}
	assert.True(t, found, "status command should be registered with root")
}

func TestRunStatus_FailsOutsideProject(t *testing.T) {
	origCfg := cfgFile
	defer func() { cfgFile = origCfg }()
	cfgFile = "/nonexistent/bastion-vpn.yaml"

	err := runStatus(statusCmd, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not in a bastion-vpn project directory")
}
