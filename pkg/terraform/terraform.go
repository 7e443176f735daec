// Package terraform shells out to the terraform binary for the project
// root module. State is treated as an external source of truth: it is
// read via output/show and only ever mutated through destroy.
package terraform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chalkan3/bastion-vpn/pkg/retry"
)

// ErrNoState indicates the working directory has no Terraform state.
var ErrNoState = errors.New("no terraform state")

const (
	destroyAttempts   = 3
	destroyRetryDelay = 10 * time.Second
)

// Runner executes an external command and returns its stdout
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// CLI drives terraform for a single working directory
type CLI struct {
	dir        string
	runner     Runner
	log        *logrus.Logger
	retryDelay time.Duration
}

// New creates a CLI for the given Terraform directory
func New(dir string, log *logrus.Logger) *CLI {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CLI{dir: dir, runner: execRunner{}, log: log, retryDelay: destroyRetryDelay}
}

// NewWithRunner creates a CLI with a custom command runner
func NewWithRunner(dir string, runner Runner, log *logrus.Logger) *CLI {
	cli := New(dir, log)
	cli.runner = runner
	return cli
}

// Dir returns the Terraform working directory
func (c *CLI) Dir() string {
	return c.dir
}

// HasState reports whether a local state file with content exists.
// A missing or empty state means there is nothing to destroy.
func (c *CLI) HasState() bool {
	info, err := os.Stat(filepath.Join(c.dir, "terraform.tfstate"))
	if err != nil {
		return false
	}
	return info.Size() > 0
}

// Output returns a single string output value (terraform output -raw)
func (c *CLI) Output(ctx context.Context, name string) (string, error) {
	out, err := c.runner.Run(ctx, c.dir, "terraform", "output", "-raw", name)
	if err != nil {
		return "", fmt.Errorf("failed to read output %q: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

type outputValue struct {
	Value interface{} `json:"value"`
}

// Outputs returns all string-valued root outputs (terraform output -json)
func (c *CLI) Outputs(ctx context.Context) (map[string]string, error) {
	out, err := c.runner.Run(ctx, c.dir, "terraform", "output", "-json")
	if err != nil {
		return nil, fmt.Errorf("failed to read outputs: %w", err)
	}

	raw := map[string]outputValue{}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse outputs: %w", err)
	}

	outputs := make(map[string]string, len(raw))
	for name, v := range raw {
		if s, ok := v.Value.(string); ok {
			outputs[name] = s
		}
	}
	return outputs, nil
}

// StateList returns the resource addresses tracked in state
func (c *CLI) StateList(ctx context.Context) ([]string, error) {
	if !c.HasState() {
		return nil, ErrNoState
	}

	out, err := c.runner.Run(ctx, c.dir, "terraform", "state", "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list state: %w", err)
	}

	var addresses []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			addresses = append(addresses, line)
		}
	}
	return addresses, nil
}

// show -json state representation, managed resources only
type stateRepresentation struct {
	Values *stateValues `json:"values"`
}

type stateValues struct {
	RootModule *stateModule `json:"root_module"`
}

type stateModule struct {
	Resources    []stateResource `json:"resources"`
	ChildModules []stateModule   `json:"child_modules"`
}

type stateResource struct {
	Address string                 `json:"address"`
	Mode    string                 `json:"mode"`
	Type    string                 `json:"type"`
	Values  map[string]interface{} `json:"values"`
}

// OwnedIDs returns the cloud IDs of every managed resource in state.
// Anything the scanner finds that is not in this set is an orphan.
func (c *CLI) OwnedIDs(ctx context.Context) (map[string]struct{}, error) {
	if !c.HasState() {
		return nil, ErrNoState
	}

	out, err := c.runner.Run(ctx, c.dir, "terraform", "show", "-json")
	if err != nil {
		return nil, fmt.Errorf("failed to show state: %w", err)
	}

	var rep stateRepresentation
	if err := json.Unmarshal(out, &rep); err != nil {
		return nil, fmt.Errorf("failed to parse state JSON: %w", err)
	}

	ids := make(map[string]struct{})
	if rep.Values != nil && rep.Values.RootModule != nil {
		collectIDs(*rep.Values.RootModule, ids)
	}
	return ids, nil
}

func collectIDs(module stateModule, ids map[string]struct{}) {
	for _, res := range module.Resources {
		if res.Mode == "data" {
			continue
		}
		if id, ok := res.Values["id"].(string); ok && id != "" {
			ids[id] = struct{}{}
		}
	}
	for _, child := range module.ChildModules {
		collectIDs(child, ids)
	}
}

// Destroy runs terraform destroy -auto-approve, retrying on failure.
// AWS dependency deletions (NAT gateways especially) often need a second
// pass after the first attempt times out.
func (c *CLI) Destroy(ctx context.Context) error {
	if !c.HasState() {
		return ErrNoState
	}

	cfg := retry.FixedConfig(destroyAttempts-1, c.retryDelay)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.log.WithError(err).Warnf("terraform destroy attempt %d failed, retrying in %s", attempt, delay)
	}

	err := retry.New(cfg).DoWithContext(ctx, func() error {
		_, runErr := c.runner.Run(ctx, c.dir, "terraform", "destroy", "-auto-approve", "-input=false")
		return runErr
	})
	if err != nil {
		return fmt.Errorf("terraform destroy failed after %d attempts: %w", destroyAttempts, err)
	}
	return nil
}
