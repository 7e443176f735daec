package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/chalkan3/bastion-vpn/pkg/aws"
	"github.com/chalkan3/bastion-vpn/pkg/config"
	"github.com/chalkan3/bastion-vpn/pkg/operations"
	"github.com/chalkan3/bastion-vpn/pkg/terraform"
	"github.com/chalkan3/bastion-vpn/pkg/vpn"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show deployment and local VPN state",
	Long: `Show what currently exists: Terraform outputs for the deployment,
the tracked local WireGuard interface, orphaned AWS resources and the
most recent recorded operation. Read-only.`,
	Example: `  bastion-vpn status
  bastion-vpn status --config ../homelab/bastion-vpn.yaml`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	project, err := loadProject()
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("Status: %s (%s)", project.Name, project.Region))

	tf := terraform.New(project.TerraformDir, log)
	printInfrastructureStatus(ctx, tf)
	printVPNStatus(ctx, project)
	printOrphanStatus(ctx, project, tf)
	printHistoryStatus(project.DataDir())
	return nil
}

func printInfrastructureStatus(ctx context.Context, tf *terraform.CLI) {
	fmt.Println("Infrastructure:")
	if !tf.HasState() {
		printInfo("No Terraform state in %s, nothing deployed", tf.Dir())
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Reading terraform outputs..."
	s.Start()
	outputs, err := tf.Outputs(ctx)
	s.Stop()
	if err != nil {
		printWarning("failed to read terraform outputs: %v", err)
		return
	}
	if len(outputs) == 0 {
		printInfo("State present but no outputs defined")
		return
	}

	w := newTabWriter()
	fmt.Fprintln(w, "OUTPUT\tVALUE")
	for name, value := range outputs {
		fmt.Fprintf(w, "%s\t%s\n", name, value)
	}
	w.Flush()
}

func printVPNStatus(ctx context.Context, project *config.Project) {
	fmt.Println()
	fmt.Println("Local VPN:")

	store, err := vpn.NewStateStore(project.DataDir(), project.Name)
	if err != nil {
		printWarning("cannot open state store: %v", err)
		return
	}

	record, err := store.Load()
	if errors.Is(err, vpn.ErrNoRecord) {
		printInfo("No tracked WireGuard interface")
		return
	}
	if err != nil {
		printWarning("cannot read state record: %v", err)
		return
	}

	printInfo("Tracked interface: %s (endpoint %s, created %s)",
		record.InterfaceName, record.EndpointIP, record.CreatedAt.Format(time.RFC3339))

	reconciler := vpn.NewReconciler(store, project.WireguardDir, log)
	if show, err := reconciler.Show(ctx, record.InterfaceName); err == nil {
		fmt.Println(show)
	} else {
		printWarning("interface %s is not up: %v", record.InterfaceName, err)
	}
}

func printOrphanStatus(ctx context.Context, project *config.Project, tf *terraform.CLI) {
	fmt.Println()
	fmt.Println("Orphaned resources:")

	awsClient, err := aws.NewClient(ctx, project.Region)
	if err != nil {
		printWarning("AWS access unavailable: %v", err)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Scanning for resources tagged %s*...", project.Prefix())
	s.Start()
	orphans, err := scanOrphans(ctx, project, tf, awsClient)
	s.Stop()
	if err != nil {
		printWarning("orphan scan failed: %v", err)
		return
	}
	if len(orphans) == 0 {
		printSuccess("No orphaned resources with prefix %s", project.Prefix())
		return
	}

	printWarning("%d orphaned resource(s), run 'bastion-vpn cleanup --check-orphans' for details", len(orphans))
}

func printHistoryStatus(dataDir string) {
	fmt.Println()
	fmt.Println("History:")

	history, err := operations.Load(dataDir)
	if err != nil {
		printWarning("cannot read history: %v", err)
		return
	}
	if history.TotalOperations() == 0 {
		printInfo("No recorded operations")
		return
	}

	if entry := history.GetLatestCleanup(); entry != nil {
		printInfo("Last cleanup: %s (%s) at %s, %d ok / %d skipped / %d failed",
			entry.Mode, entry.Status, entry.Timestamp.Format(time.RFC3339),
			entry.StepsOK, entry.StepsSkipped, entry.StepsFailed)
	}
	if entry := history.GetLatestVPN(); entry != nil {
		printInfo("Last VPN operation: %s (%s) at %s",
			entry.Operation, entry.Status, entry.Timestamp.Format(time.RFC3339))
	}
	printInfo("Total recorded operations: %d", history.TotalOperations())
}
