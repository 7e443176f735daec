package sshconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `Host github.com
    User git
    IdentityFile ~/.ssh/id_ed25519

Host homelab-bastion
    HostName 203.0.113.10
    User ubuntu
    IdentityFile ~/.ssh/homelab-key.pem

Host *.internal
    ProxyJump homelab-bastion
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestRemoveHostBlock(t *testing.T) {
	path := writeFile(t, "config", sampleConfig)

	removed, err := RemoveHostBlock(path, "homelab-bastion")
	require.NoError(t, err)
	assert.True(t, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.NotContains(t, content, "Host homelab-bastion")
	assert.NotContains(t, content, "HostName 203.0.113.10")
	assert.NotContains(t, content, "homelab-key.pem")

	// Other blocks survive, including the one referencing the alias
	assert.Contains(t, content, "Host github.com")
	assert.Contains(t, content, "User git")
	assert.Contains(t, content, "Host *.internal")
	assert.Contains(t, content, "ProxyJump homelab-bastion")
}

func TestRemoveHostBlockAbsentAlias(t *testing.T) {
	path := writeFile(t, "config", sampleConfig)

	removed, err := RemoveHostBlock(path, "nonexistent")
	require.NoError(t, err)
	assert.False(t, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleConfig, string(data), "file untouched when alias not found")
}

func TestRemoveHostBlockMissingFile(t *testing.T) {
	removed, err := RemoveHostBlock(filepath.Join(t.TempDir(), "config"), "homelab-bastion")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRemoveHostBlockMultiAliasLine(t *testing.T) {
	path := writeFile(t, "config", "Host homelab-bastion bastion\n    User ubuntu\n\nHost other\n    User root\n")

	removed, err := RemoveHostBlock(path, "bastion")
	require.NoError(t, err)
	assert.True(t, removed)

	data, _ := os.ReadFile(path)
	assert.NotContains(t, string(data), "User ubuntu")
	assert.Contains(t, string(data), "Host other")
}

const sampleKnownHosts = `github.com ssh-ed25519 AAAAC3Nza...
203.0.113.10 ssh-ed25519 AAAAC3Nzb...
203.0.113.10,bastion.example.com ecdsa-sha2-nistp256 AAAAE2Vj...
[203.0.113.10]:2222 ssh-rsa AAAAB3Nzc...
|1|hashed|entry ssh-ed25519 AAAAC3Nzd...
198.51.100.7 ssh-ed25519 AAAAC3Nze...
`

func TestPruneKnownHosts(t *testing.T) {
	path := writeFile(t, "known_hosts", sampleKnownHosts)

	removed, err := PruneKnownHosts(path, "203.0.113.10")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.NotContains(t, content, "203.0.113.10")
	assert.Contains(t, content, "github.com")
	assert.Contains(t, content, "198.51.100.7")
	assert.Contains(t, content, "|1|hashed|entry", "hashed entries are left alone")
}

func TestPruneKnownHostsNoMatch(t *testing.T) {
	path := writeFile(t, "known_hosts", sampleKnownHosts)

	removed, err := PruneKnownHosts(path, "192.0.2.1")
	require.NoError(t, err)
	assert.Zero(t, removed)

	data, _ := os.ReadFile(path)
	assert.Equal(t, sampleKnownHosts, string(data))
}

func TestPruneKnownHostsMissingFile(t *testing.T) {
	removed, err := PruneKnownHosts(filepath.Join(t.TempDir(), "known_hosts"), "203.0.113.10")
	require.NoError(t, err)
	assert.Zero(t, removed)
}
