package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkan3/bastion-vpn/internal/audit"
	"github.com/chalkan3/bastion-vpn/pkg/aws"
	"github.com/chalkan3/bastion-vpn/pkg/cleanup"
	"github.com/chalkan3/bastion-vpn/pkg/operations"
	"github.com/chalkan3/bastion-vpn/pkg/terraform"
)

func TestCleanupCmd_Structure(t *testing.T) {
	assert.NotNil(t, cleanupCmd)
	assert.Equal(t, "cleanup", cleanupCmd.Use)
	assert.NotEmpty(t, cleanupCmd.Short)
	assert.NotEmpty(t, cleanupCmd.Long)
	assert.NotEmpty(t, cleanupCmd.Example)
}

func TestCleanupCmd_RunE(t *testing.T) {
	assert.NotNil(t, cleanupCmd.RunE, "cleanup command should have RunE function")
}

func TestCleanupCmd_Flags(t *testing.T) {
	for _, name := range []string{"full", "ultra", "dry-run", "check-orphans"} {
		flag := cleanupCmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "cleanup should have --%s flag", name)
		assert.Equal(t, "bool", flag.Value.Type())
		assert.Equal(t, "false", flag.DefValue, "--%s should default to false", name)
	}
}

func TestCleanupCmd_NoAutoApproveFlag(t *testing.T) {
	// Every destructive step must confirm individually; there is
	// deliberately no flag to skip confirmation.
	for _, name := range []string{"yes", "force", "auto-approve"} {
		assert.Nil(t, cleanupCmd.Flags().Lookup(name), "cleanup must not have --%s flag", name)
	}
}

func TestCleanupCmd_HasWarning(t *testing.T) {
	long := cleanupCmd.Long
	assert.Contains(t, long, "WARNING")
	assert.Contains(t, long, "cannot be undone")
	assert.Contains(t, long, "confirmation")
}

func TestCleanupCmd_Examples(t *testing.T) {
	examples := cleanupCmd.Example
	assert.Contains(t, examples, "cleanup")
	assert.Contains(t, examples, "--ultra")
	assert.Contains(t, examples, "--dry-run")
	assert.Contains(t, examples, "--check-orphans")
}

func TestCleanupCmd_RegisteredWithRoot(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "cleanup" {
			found = true
			break
		}
	}
	assert.True(t, found, "cleanup command should be registered with root")
}

func TestCleanupMode(t *testing.T) {
	tests := []struct {
		name  string
		full  bool
		ultra bool
		want  cleanup.Mode
	}{
		{"default is quick", false, false, cleanup.ModeQuick},
		{"full flag", true, false, cleanup.ModeFull},
		{"ultra flag", false, true, cleanup.ModeUltra},
		{"ultra wins over full", true, true, cleanup.ModeUltra},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origFull, origUltra := cleanupFull, cleanupUltra
			defer func() { cleanupFull, cleanupUltra = origFull, origUltra }()

			cleanupFull = tt.full
			cleanupUltra = tt.ultra
			assert.Equal(t, tt.want, cleanupMode())
		})
	}
}

func TestRunCleanup_FailsOutsideProject(t *testing.T) {
	origCfg := cfgFile
	defer func() { cfgFile = origCfg }()
	cfgFile = "/nonexistent/bastion-vpn.yaml"

	err := runCleanup(cleanupCmd, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not in a bastion-vpn project directory")
}

// recordingRunner implements terraform.Runner and records every command
type recordingRunner struct {
	commands [][]string
}

func (r *recordingRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	r.commands = append(r.commands, append([]string{name}, args...))
	return nil, nil
}

func TestDestroyInfrastructure_DeclinedRunsNothing(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "terraform.tfstate")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"resources":[{}]}`), 0644))

	runner := &recordingRunner{}
	tf := terraform.NewWithRunner(dir, runner, nil)

	origDry := dryRun
	defer func() { dryRun = origDry }()
	dryRun = false
	withConfirmInput(t, "n\n")

	report := &cleanup.Report{}
	destroyInfrastructure(context.Background(), tf, report, audit.NewLogger())

	assert.Empty(t, runner.commands, "declining must not invoke terraform")
	require.Len(t, report.Steps, 1)
	assert.Equal(t, cleanup.StatusSkipped, report.Steps[0].Status)
	assert.FileExists(t, statePath, "declining must leave the state untouched")
}

func TestRunCleanup_DeclinedConfirmationExitsClean(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	projectDir := t.TempDir()
	tfDir := filepath.Join(projectDir, "terraform")
	require.NoError(t, os.MkdirAll(tfDir, 0755))
	statePath := filepath.Join(tfDir, "terraform.tfstate")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"resources":[{}]}`), 0644))

	cfgPath := filepath.Join(projectDir, "bastion-vpn.yaml")
	cfg := "project: homelab\nregion: us-east-1\nterraform_dir: " + tfDir + "\nwireguard_dir: " + t.TempDir() + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	origCfg := cfgFile
	origFull, origUltra, origDry, origCheck := cleanupFull, cleanupUltra, dryRun, checkOrphans
	defer func() {
		cfgFile = origCfg
		cleanupFull, cleanupUltra, dryRun, checkOrphans = origFull, origUltra, origDry, origCheck
	}()
	cfgFile = cfgPath
	cleanupFull, cleanupUltra, dryRun, checkOrphans = false, false, false, false

	origNewAWSClient := newAWSClient
	defer func() { newAWSClient = origNewAWSClient }()
	newAWSClient = func(ctx context.Context, region string) (*aws.Client, error) {
		return nil, errors.New("credentials not configured")
	}

	// Declines the terraform destroy prompt; the other quick-mode steps
	// skip on their own (no AWS access, no tracked interface)
	withConfirmInput(t, "n\n")

	err := runCleanup(cleanupCmd, nil)
	require.NoError(t, err, "a declined confirmation is not a failure")
	assert.FileExists(t, statePath, "declining must leave the state untouched")

	history, err := operations.Load(filepath.Join(home, ".bastion-vpn"))
	require.NoError(t, err)
	entry := history.GetLatestCleanup()
	require.NotNil(t, entry)
	assert.Equal(t, "success", entry.Status)
	assert.Zero(t, entry.StepsFailed)
	assert.Zero(t, entry.StepsOK)
	assert.GreaterOrEqual(t, entry.StepsSkipped, 3)
}
