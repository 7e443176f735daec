// Package config loads and validates the project configuration file
// (bastion-vpn.yaml) that ties a working directory to a deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file expected in the project directory.
const DefaultFileName = "bastion-vpn.yaml"

// SSHConfig holds the local SSH artifacts managed on full cleanup
type SSHConfig struct {
	// ConfigPath is the ssh client config containing the bastion Host block
	ConfigPath string `yaml:"config_path"`
	// KnownHostsPath is the known_hosts file to prune bastion entries from
	KnownHostsPath string `yaml:"known_hosts_path"`
	// HostAlias is the Host block name written for the bastion
	HostAlias string `yaml:"host_alias"`
}

// Project describes one bastion+VPN deployment
type Project struct {
	// Name is the project prefix used to tag every AWS resource
	Name string `yaml:"project"`
	// Region is the AWS region the deployment lives in
	Region string `yaml:"region"`
	// TerraformDir is the directory holding the Terraform root module
	TerraformDir string `yaml:"terraform_dir"`
	// WireguardDir is where wg-quick config files live
	WireguardDir string `yaml:"wireguard_dir"`
	// SSH configures the local SSH artifacts
	SSH SSHConfig `yaml:"ssh"`
}

// Validator interface for config validation
type Validator interface {
	Validate(project *Project) error
}

// Loader handles configuration loading and validation
type Loader struct {
	configPath string
	project    *Project
	validators []Validator
}

// NewLoader creates a new configuration loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		validators: []Validator{},
	}
}

// AddValidator adds a configuration validator
func (l *Loader) AddValidator(v Validator) {
	l.validators = append(l.validators, v)
}

// Load loads the configuration from the YAML file
func (l *Loader) Load() (*Project, error) {
	// Check if config file exists
	if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", l.configPath)
	}

	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	project := &Project{}
	if err := yaml.Unmarshal(data, project); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(project)

	if err := l.validate(project); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	l.project = project
	return project, nil
}

// GetConfig returns the loaded configuration
func (l *Loader) GetConfig() *Project {
	return l.project
}

func (l *Loader) validate(project *Project) error {
	if project.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if strings.ContainsAny(project.Name, " /\\") {
		return fmt.Errorf("project name %q must not contain spaces or path separators", project.Name)
	}
	if project.Region == "" {
		return fmt.Errorf("region is required")
	}

	for _, v := range l.validators {
		if err := v.Validate(project); err != nil {
			return err
		}
	}

	return nil
}

// applyDefaults fills in unset fields with conventional paths
func applyDefaults(project *Project) {
	if project.TerraformDir == "" {
		project.TerraformDir = "terraform"
	}
	if project.WireguardDir == "" {
		project.WireguardDir = "/etc/wireguard"
	}
	if project.SSH.ConfigPath == "" {
		project.SSH.ConfigPath = expandHome("~/.ssh/config")
	} else {
		project.SSH.ConfigPath = expandHome(project.SSH.ConfigPath)
	}
	if project.SSH.KnownHostsPath == "" {
		project.SSH.KnownHostsPath = expandHome("~/.ssh/known_hosts")
	} else {
		project.SSH.KnownHostsPath = expandHome(project.SSH.KnownHostsPath)
	}
	if project.SSH.HostAlias == "" {
		project.SSH.HostAlias = project.Name + "-bastion"
	}
}

// Prefix returns the Name-tag prefix shared by every AWS resource of
// this project
func (p *Project) Prefix() string {
	return p.Name + "-"
}

// DataDir returns the per-user directory holding local state records
func (p *Project) DataDir() string {
	return filepath.Join(expandHome("~"), ".bastion-vpn")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
