// Package sshconfig edits the local ssh client files that provisioning
// wrote for the bastion: the Host block in ~/.ssh/config and the host
// key entries in known_hosts.
package sshconfig

import (
	"fmt"
	"os"
	"strings"
)

// RemoveHostBlock deletes the Host block for the given alias from an
// ssh config file. It reports whether a block was removed. A missing
// file or alias is not an error.
func RemoveHostBlock(path, alias string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	var kept []string
	removed := false
	skipping := false

	for _, line := range lines {
		if isHostLine(line) {
			skipping = hostLineMatches(line, alias)
			if skipping {
				removed = true
				continue
			}
		}
		if skipping {
			// Indented options belong to the block being removed
			continue
		}
		kept = append(kept, line)
	}

	if !removed {
		return false, nil
	}

	out := strings.Join(kept, "\n")
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func isHostLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if line != "" && (line[0] == ' ' || line[0] == '\t') {
		return false
	}
	fields := strings.Fields(trimmed)
	return len(fields) > 0 && strings.EqualFold(fields[0], "Host")
}

func hostLineMatches(line, alias string) bool {
	fields := strings.Fields(strings.TrimSpace(line))
	for _, field := range fields[1:] {
		if field == alias {
			return true
		}
	}
	return false
}

// PruneKnownHosts removes every known_hosts entry for the given host
// (plain, comma-grouped, or [host]:port form) and returns how many
// lines were dropped. Same effect as ssh-keygen -R without the backup
// file.
func PruneKnownHosts(path, host string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	var kept []string
	removed := 0

	for _, line := range lines {
		if knownHostsLineMatches(line, host) {
			removed++
			continue
		}
		kept = append(kept, line)
	}

	if removed == 0 {
		return 0, nil
	}

	out := strings.Join(kept, "\n")
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return removed, nil
}

func knownHostsLineMatches(line, host string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}

	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return false
	}

	// Hashed entries (|1|...) cannot be matched by name; leave them
	if strings.HasPrefix(fields[0], "|") {
		return false
	}

	for _, name := range strings.Split(fields[0], ",") {
		if name == host {
			return true
		}
		// [host]:port form for non-standard ports
		if strings.HasPrefix(name, "["+host+"]:") {
			return true
		}
	}
	return false
}
