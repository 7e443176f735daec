package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chalkan3/bastion-vpn/pkg/config"
)

var (
	cfgFile string
	verbose bool

	log = logrus.New()

	// Version information - set by main.go
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

// SetVersionInfo sets the version information from main.go
func SetVersionInfo(version, commit, date, builtBy string) {
	Version = version
	Commit = commit
	Date = date
	BuiltBy = builtBy
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bastion-vpn",
	Short: "Teardown tool for bastion-fronted AWS VPC + WireGuard deployments",
	Long: `bastion-vpn manages the teardown half of a Terraform-provisioned
bastion + WireGuard deployment on AWS: it destroys the infrastructure,
finds and removes orphaned tagged resources the destroy left behind,
and reconciles local VPN and SSH state back to a clean workstation.

Terraform remains the source of truth for what exists; this tool only
ever reads its state and invokes destroy.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./bastion-vpn.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(`bastion-vpn %s
  Commit:    %s
  Built:     %s
  Built by:  %s
`, Version, Commit, Date, BuiltBy))
	rootCmd.Version = Version
}

func initLogging() {
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
}

// loadProject loads the project config from --config or the working
// directory. Commands treat an error here as a precondition failure.
func loadProject() (*config.Project, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultFileName
	}
	project, err := config.NewLoader(path).Load()
	if err != nil {
		return nil, fmt.Errorf("not in a bastion-vpn project directory: %w", err)
	}
	return project, nil
}
