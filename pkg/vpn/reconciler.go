package vpn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoMatch indicates no WireGuard config references the endpoint.
var ErrNoMatch = errors.New("no wireguard config matches endpoint")

// Runner executes an external command and returns its combined output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Reconciler tears down the local side of the tunnel. The state record
// is authoritative; the endpoint heuristic is the fallback when the
// record is missing. It never touches an interface it cannot attribute
// to the project.
type Reconciler struct {
	store  *StateStore
	runner Runner
	wgDir  string
	log    *logrus.Logger

	// DryRun disables wg-quick invocations and file removal
	DryRun bool
}

// NewReconciler creates a Reconciler over the given WireGuard directory
func NewReconciler(store *StateStore, wgDir string, log *logrus.Logger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{store: store, runner: execRunner{}, wgDir: wgDir, log: log}
}

// NewReconcilerWithRunner creates a Reconciler with a custom runner
func NewReconcilerWithRunner(store *StateStore, wgDir string, runner Runner, log *logrus.Logger) *Reconciler {
	r := NewReconciler(store, wgDir, log)
	r.runner = runner
	return r
}

// Tracked returns the state record, or ErrNoRecord
func (r *Reconciler) Tracked() (*StateRecord, error) {
	return r.store.Load()
}

// configPath returns the wg-quick config file for an interface
func (r *Reconciler) configPath(iface string) string {
	return filepath.Join(r.wgDir, iface+".conf")
}

// TeardownTracked stops the tracked interface, removes its config file
// and deletes the state record. Returns the interface name it acted on.
// Stopping an already-down interface is tolerated: the config and the
// record are still removed.
func (r *Reconciler) TeardownTracked(ctx context.Context) (string, error) {
	record, err := r.store.Load()
	if err != nil {
		return "", err
	}

	if r.DryRun {
		return record.InterfaceName, nil
	}

	if err := r.down(ctx, record.InterfaceName); err != nil {
		r.log.WithError(err).Warnf("wg-quick down %s failed, removing config anyway", record.InterfaceName)
	}

	if err := r.removeConfig(record.InterfaceName); err != nil {
		return record.InterfaceName, err
	}

	if err := r.store.Delete(); err != nil {
		return record.InterfaceName, err
	}
	return record.InterfaceName, nil
}

// TeardownInterface stops one named interface and removes its config.
// Used by the endpoint heuristic after the operator confirms the match.
func (r *Reconciler) TeardownInterface(ctx context.Context, iface string) error {
	if r.DryRun {
		return nil
	}

	if err := r.down(ctx, iface); err != nil {
		r.log.WithError(err).Warnf("wg-quick down %s failed, removing config anyway", iface)
	}
	return r.removeConfig(iface)
}

func (r *Reconciler) down(ctx context.Context, iface string) error {
	_, err := r.runner.Run(ctx, "wg-quick", "down", iface)
	return err
}

func (r *Reconciler) removeConfig(iface string) error {
	path := r.configPath(iface)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// FindByEndpoint scans the WireGuard directory for a config whose Peer
// endpoint references the given IP and returns its interface name.
// Returns ErrNoMatch when nothing references the endpoint.
func (r *Reconciler) FindByEndpoint(endpointIP string) (string, error) {
	if endpointIP == "" {
		return "", ErrNoMatch
	}

	paths, err := filepath.Glob(filepath.Join(r.wgDir, "*.conf"))
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", r.wgDir, err)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.WithError(err).Debugf("skipping unreadable config %s", path)
			continue
		}
		if configReferencesEndpoint(string(data), endpointIP) {
			return strings.TrimSuffix(filepath.Base(path), ".conf"), nil
		}
	}
	return "", ErrNoMatch
}

func configReferencesEndpoint(content, endpointIP string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Endpoint") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		endpoint := strings.TrimSpace(parts[1])
		host := endpoint
		if idx := strings.LastIndex(endpoint, ":"); idx >= 0 {
			host = endpoint[:idx]
		}
		if host == endpointIP {
			return true
		}
	}
	return false
}

// ProjectConfigs lists the remaining project-prefixed config files in
// the WireGuard directory. Ultra cleanup removes these.
func (r *Reconciler) ProjectConfigs(prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(r.wgDir, prefix+"*.conf"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", r.wgDir, err)
	}
	return paths, nil
}

// Show returns the wg show output for an interface
func (r *Reconciler) Show(ctx context.Context, iface string) (string, error) {
	out, err := r.runner.Run(ctx, "wg", "show", iface)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
