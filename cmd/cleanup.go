package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chalkan3/bastion-vpn/internal/audit"
	"github.com/chalkan3/bastion-vpn/pkg/aws"
	"github.com/chalkan3/bastion-vpn/pkg/cleanup"
	"github.com/chalkan3/bastion-vpn/pkg/config"
	"github.com/chalkan3/bastion-vpn/pkg/operations"
	"github.com/chalkan3/bastion-vpn/pkg/sshconfig"
	"github.com/chalkan3/bastion-vpn/pkg/terraform"
	"github.com/chalkan3/bastion-vpn/pkg/vpn"
)

var (
	cleanupFull  bool
	cleanupUltra bool
	dryRun       bool
	checkOrphans bool
)

// newAWSClient is swapped out in tests
var newAWSClient = aws.NewClient

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Destroy the deployment and reconcile local state",
	Long: `Tear down the bastion + WireGuard deployment and everything it left
behind: run terraform destroy, delete orphaned project-tagged AWS
resources the destroy missed, stop the tracked WireGuard interface and
remove its config.

WARNING: this deletes cloud resources and cannot be undone. Every
destructive step asks for confirmation individually; there is no
auto-approve flag.

Modes:
  (default)  terraform destroy + orphans + tracked VPN interface
  --full     also remove the bastion SSH config entry and host keys
  --ultra    also remove any remaining project WireGuard configs
  --dry-run  report what would happen without touching anything`,
	Example: `  # Standard cleanup with per-step confirmation
  bastion-vpn cleanup

  # Everything including SSH artifacts and stray WireGuard configs
  bastion-vpn cleanup --ultra

  # See what a cleanup would do
  bastion-vpn cleanup --dry-run

  # Only report orphaned AWS resources, change nothing
  bastion-vpn cleanup --check-orphans`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupFull, "full", false, "Also remove SSH config entry and known_hosts entries")
	cleanupCmd.Flags().BoolVar(&cleanupUltra, "ultra", false, "Also remove remaining project WireGuard configs (implies --full)")
	cleanupCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report actions without performing them")
	cleanupCmd.Flags().BoolVar(&checkOrphans, "check-orphans", false, "Only scan for orphaned AWS resources and report")
}

func cleanupMode() cleanup.Mode {
	switch {
	case cleanupUltra:
		return cleanup.ModeUltra
	case cleanupFull:
		return cleanup.ModeFull
	default:
		return cleanup.ModeQuick
	}
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	project, err := loadProject()
	if err != nil {
		return err
	}

	mode := cleanupMode()
	started := time.Now()

	title := fmt.Sprintf("Cleanup: %s (%s)", project.Name, mode)
	if dryRun {
		title += " [dry-run]"
	}
	printHeader(title)

	tf := terraform.New(project.TerraformDir, log)

	awsClient, err := newAWSClient(ctx, project.Region)
	if err != nil {
		printWarning("AWS access unavailable, cloud scan will be skipped: %v", err)
		awsClient = nil
	}

	if checkOrphans {
		return runCheckOrphans(ctx, project, tf, awsClient)
	}

	auditLog := audit.NewLogger()
	report := &cleanup.Report{}

	// The bastion endpoint is only readable while state still exists,
	// and the VPN heuristic and known_hosts pruning need it after the
	// destroy. Capture it first.
	bastionIP := ""
	if tf.HasState() {
		if ip, err := tf.Output(ctx, "bastion_public_ip"); err == nil {
			bastionIP = ip
		} else {
			log.WithError(err).Debug("could not read bastion_public_ip output")
		}
	}

	destroyInfrastructure(ctx, tf, report, auditLog)
	orphansFound, removed := teardownOrphans(ctx, project, tf, awsClient, report, auditLog)
	reconcileLocalVPN(ctx, project, bastionIP, report, auditLog)

	if mode.Includes(cleanup.ModeFull) {
		cleanSSHArtifacts(project, bastionIP, report, auditLog)
	}
	if mode.Includes(cleanup.ModeUltra) {
		removeRemainingConfigs(ctx, project, report, auditLog)
	}

	printHeader("Cleanup Summary")
	report.Render(os.Stdout)
	fmt.Println()

	if !dryRun {
		if path, err := auditLog.SaveToDir(filepath.Join(project.DataDir(), "audit")); err != nil {
			printWarning("failed to save audit log: %v", err)
		} else {
			printInfo("Audit log: %s", path)
		}
		recordCleanupRun(project, mode, report, orphansFound, removed, time.Since(started))
	}

	if report.HasFailures() {
		printWarning("Cleanup finished with %d failed step(s), see summary above", report.Count(cleanup.StatusFailed))
	} else {
		printSuccess("Cleanup complete in %s", time.Since(started).Round(time.Second))
	}
	return nil
}

// destroyInfrastructure runs terraform destroy with confirmation.
// Missing state means a previous run already finished the job.
func destroyInfrastructure(ctx context.Context, tf *terraform.CLI, report *cleanup.Report, auditLog *audit.Logger) {
	const step = "terraform destroy"

	if !tf.HasState() {
		report.Skip(step, "no state, already clean")
		printInfo("No Terraform state found, infrastructure already clean")
		return
	}

	if dryRun {
		report.Would(step, "destroy all resources in "+tf.Dir())
		return
	}

	if !confirm("Destroy all Terraform-managed infrastructure?") {
		report.Skip(step, "declined")
		auditLog.Log(audit.EventTypeTerraform, audit.ActionSkip, tf.Dir(), "destroy declined", true, nil)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Running terraform destroy (retries on failure)..."
	s.Start()
	err := tf.Destroy(ctx)
	s.Stop()

	if err != nil {
		report.Fail(step, err)
		auditLog.Log(audit.EventTypeTerraform, audit.ActionDelete, tf.Dir(), "terraform destroy", false, err)
		printErrorMsg("terraform destroy failed: %v", err)
		printWarning("Continuing with local cleanup; rerun later or remove leftovers via --check-orphans")
		return
	}

	report.OK(step, "all managed resources destroyed")
	auditLog.Log(audit.EventTypeTerraform, audit.ActionDelete, tf.Dir(), "terraform destroy", true, nil)
	printSuccess("Infrastructure destroyed")
}

// teardownOrphans scans for project-tagged resources not in state and
// deletes them after confirmation. Returns how many were found and how
// many were removed.
func teardownOrphans(ctx context.Context, project *config.Project, tf *terraform.CLI, awsClient *aws.Client, report *cleanup.Report, auditLog *audit.Logger) (int, int) {
	const step = "orphan teardown"

	if awsClient == nil {
		report.Skip(step, "no AWS access")
		return 0, 0
	}

	orphans, err := scanOrphans(ctx, project, tf, awsClient)
	if err != nil {
		report.Fail(step, err)
		return 0, 0
	}
	if len(orphans) == 0 {
		report.Skip(step, "no orphaned resources found")
		printInfo("No orphaned resources with prefix %s", project.Prefix())
		return 0, 0
	}

	printWarning("Found %d orphaned resource(s) tagged %s*", len(orphans), project.Prefix())
	printWarning("Matching is by name prefix: resources from another deployment using the same prefix would be included")
	for _, orphan := range orphans {
		fmt.Printf("  • %s\n", orphan)
	}

	executor := aws.NewExecutor(awsClient.EC2, log)
	executor.DryRun = dryRun

	if dryRun {
		for _, result := range executor.Teardown(ctx, orphans) {
			report.Would(step, result.Resource.String())
		}
		return len(orphans), 0
	}

	if !confirm(fmt.Sprintf("Delete these %d orphaned resource(s)?", len(orphans))) {
		report.Skip(step, "declined")
		auditLog.Log(audit.EventTypeAWS, audit.ActionSkip, project.Prefix()+"*", "orphan teardown declined", true, nil)
		return len(orphans), 0
	}

	removed := 0
	for _, result := range executor.Teardown(ctx, orphans) {
		switch result.Action {
		case aws.ActionDeleted:
			removed++
			auditLog.Log(audit.EventTypeAWS, audit.ActionDelete, result.Resource.ID, "deleted "+result.Resource.String(), true, nil)
		case aws.ActionFailed:
			report.Fail(step+": "+result.Resource.ID, result.Err)
			auditLog.Log(audit.EventTypeAWS, audit.ActionDelete, result.Resource.ID, "delete "+result.Resource.String(), false, result.Err)
		}
	}
	if removed > 0 {
		report.OK(step, fmt.Sprintf("%d resource(s) deleted", removed))
		printSuccess("Deleted %d orphaned resource(s)", removed)
	}
	return len(orphans), removed
}

func scanOrphans(ctx context.Context, project *config.Project, tf *terraform.CLI, awsClient *aws.Client) ([]aws.TrackedResource, error) {
	scanner := aws.NewScanner(awsClient.EC2, project.Prefix(), log)
	found, err := scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("orphan scan failed: %w", err)
	}

	ownedIDs := map[string]struct{}{}
	if tf.HasState() {
		ownedIDs, err = tf.OwnedIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read owned resource IDs: %w", err)
		}
	}

	return aws.Orphans(found, ownedIDs), nil
}

// reconcileLocalVPN tears down the workstation tunnel. The state record
// decides which interface is ours; without one, a config referencing
// the bastion endpoint is offered as a candidate.
func reconcileLocalVPN(ctx context.Context, project *config.Project, bastionIP string, report *cleanup.Report, auditLog *audit.Logger) {
	const step = "vpn teardown"

	store, err := vpn.NewStateStore(project.DataDir(), project.Name)
	if err != nil {
		report.Fail(step, err)
		return
	}

	reconciler := vpn.NewReconciler(store, project.WireguardDir, log)
	reconciler.DryRun = dryRun

	record, err := store.Load()
	switch {
	case err == nil:
		if dryRun {
			report.Would(step, "stop tracked interface "+record.InterfaceName)
			return
		}
		iface, err := reconciler.TeardownTracked(ctx)
		if err != nil {
			report.Fail(step, err)
			auditLog.Log(audit.EventTypeVPN, audit.ActionDelete, iface, "teardown tracked interface", false, err)
			return
		}
		report.OK(step, "stopped tracked interface "+iface)
		auditLog.Log(audit.EventTypeVPN, audit.ActionDelete, iface, "stopped tracked interface, removed config and state record", true, nil)
		printSuccess("Stopped WireGuard interface %s", iface)

	case errors.Is(err, vpn.ErrNoRecord):
		iface, findErr := reconciler.FindByEndpoint(bastionIP)
		if errors.Is(findErr, vpn.ErrNoMatch) {
			report.Skip(step, "no tracked interface and no config references the bastion")
			return
		}
		if findErr != nil {
			report.Fail(step, findErr)
			return
		}

		if dryRun {
			report.Would(step, fmt.Sprintf("offer to stop %s (endpoint matches bastion %s)", iface, bastionIP))
			return
		}
		printWarning("No state record, but %s.conf points at the bastion (%s)", iface, bastionIP)
		if !confirm(fmt.Sprintf("Stop WireGuard interface %s and remove its config?", iface)) {
			report.Skip(step, "declined")
			auditLog.Log(audit.EventTypeVPN, audit.ActionSkip, iface, "heuristic teardown declined", true, nil)
			return
		}
		if err := reconciler.TeardownInterface(ctx, iface); err != nil {
			report.Fail(step, err)
			auditLog.Log(audit.EventTypeVPN, audit.ActionDelete, iface, "teardown by endpoint match", false, err)
			return
		}
		report.OK(step, "stopped "+iface+" (matched bastion endpoint)")
		auditLog.Log(audit.EventTypeVPN, audit.ActionDelete, iface, "stopped interface matched by endpoint", true, nil)

	default:
		report.Fail(step, err)
	}
}

// cleanSSHArtifacts removes the bastion Host block and known_hosts
// entries (full mode and up)
func cleanSSHArtifacts(project *config.Project, bastionIP string, report *cleanup.Report, auditLog *audit.Logger) {
	const step = "ssh cleanup"

	if dryRun {
		report.Would(step, fmt.Sprintf("remove Host %s from %s and prune known_hosts", project.SSH.HostAlias, project.SSH.ConfigPath))
		return
	}

	if !confirm(fmt.Sprintf("Remove SSH config entry %q and bastion host keys?", project.SSH.HostAlias)) {
		report.Skip(step, "declined")
		auditLog.Log(audit.EventTypeSSH, audit.ActionSkip, project.SSH.HostAlias, "ssh cleanup declined", true, nil)
		return
	}

	removed, err := sshconfig.RemoveHostBlock(project.SSH.ConfigPath, project.SSH.HostAlias)
	if err != nil {
		report.Fail(step, err)
		auditLog.Log(audit.EventTypeSSH, audit.ActionDelete, project.SSH.ConfigPath, "remove Host block", false, err)
		return
	}

	pruned := 0
	for _, host := range sshPruneTargets(project, bastionIP) {
		n, err := sshconfig.PruneKnownHosts(project.SSH.KnownHostsPath, host)
		if err != nil {
			report.Fail(step, err)
			auditLog.Log(audit.EventTypeSSH, audit.ActionDelete, project.SSH.KnownHostsPath, "prune known_hosts", false, err)
			return
		}
		pruned += n
	}

	detail := fmt.Sprintf("host block removed: %t, known_hosts entries pruned: %d", removed, pruned)
	report.OK(step, detail)
	auditLog.Log(audit.EventTypeSSH, audit.ActionDelete, project.SSH.HostAlias, detail, true, nil)
	printSuccess("SSH artifacts cleaned (%s)", detail)
}

func sshPruneTargets(project *config.Project, bastionIP string) []string {
	targets := []string{project.SSH.HostAlias}
	if bastionIP != "" {
		targets = append(targets, bastionIP)
	}
	return targets
}

// removeRemainingConfigs deletes any leftover project-prefixed
// WireGuard configs (ultra mode)
func removeRemainingConfigs(ctx context.Context, project *config.Project, report *cleanup.Report, auditLog *audit.Logger) {
	const step = "remaining wireguard configs"

	store, err := vpn.NewStateStore(project.DataDir(), project.Name)
	if err != nil {
		report.Fail(step, err)
		return
	}
	reconciler := vpn.NewReconciler(store, project.WireguardDir, log)
	reconciler.DryRun = dryRun

	paths, err := reconciler.ProjectConfigs(project.Prefix())
	if err != nil {
		report.Fail(step, err)
		return
	}
	if len(paths) == 0 {
		report.Skip(step, "none found")
		return
	}

	if dryRun {
		for _, path := range paths {
			report.Would(step, "remove "+path)
		}
		return
	}

	if !confirm(fmt.Sprintf("Remove %d remaining project WireGuard config(s)?", len(paths))) {
		report.Skip(step, "declined")
		auditLog.Log(audit.EventTypeVPN, audit.ActionSkip, project.Prefix()+"*", "remaining config removal declined", true, nil)
		return
	}

	removed := 0
	for _, path := range paths {
		iface := strings.TrimSuffix(filepath.Base(path), ".conf")
		if err := reconciler.TeardownInterface(ctx, iface); err != nil {
			report.Fail(step+": "+iface, err)
			auditLog.Log(audit.EventTypeVPN, audit.ActionDelete, iface, "remove remaining config", false, err)
			continue
		}
		removed++
		auditLog.Log(audit.EventTypeVPN, audit.ActionDelete, iface, "removed remaining config "+path, true, nil)
	}
	if removed > 0 {
		report.OK(step, fmt.Sprintf("%d config(s) removed", removed))
	}
}

// runCheckOrphans is the read-only scan behind --check-orphans
func runCheckOrphans(ctx context.Context, project *config.Project, tf *terraform.CLI, awsClient *aws.Client) error {
	printHeader(fmt.Sprintf("Orphan Check: %s", project.Name))

	if awsClient == nil {
		printWarning("AWS access unavailable, nothing to check")
		return nil
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = fmt.Sprintf(" Scanning for resources tagged %s*...", project.Prefix())
	s.Start()
	orphans, err := scanOrphans(ctx, project, tf, awsClient)
	s.Stop()
	if err != nil {
		return err
	}

	if len(orphans) == 0 {
		printSuccess("No orphaned resources with prefix %s", project.Prefix())
		return nil
	}

	printWarning("Found %d orphaned resource(s):", len(orphans))
	printOrphanTable(orphans)
	printWarning("Matching is by name prefix: resources from another deployment using the same prefix would be included")
	printInfo("Remove them with: bastion-vpn cleanup")
	return nil
}

func printOrphanTable(orphans []aws.TrackedResource) {
	w := newTabWriter()
	fmt.Fprintln(w, "KIND\tID\tNAME\tSTATE")
	fmt.Fprintln(w, "----\t--\t----\t-----")
	for _, orphan := range orphans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", orphan.Kind, orphan.ID, orphan.NameTag, orphan.State)
	}
	w.Flush()
}

func recordCleanupRun(project *config.Project, mode cleanup.Mode, report *cleanup.Report, orphansFound, removed int, elapsed time.Duration) {
	history, err := operations.Load(project.DataDir())
	if err != nil {
		printWarning("failed to load history: %v", err)
		return
	}

	status := "success"
	if report.HasFailures() {
		status = "partial"
	}

	history.AddCleanup(operations.CleanupEntry{
		ID:               uuid.New().String(),
		Timestamp:        time.Now().UTC(),
		Mode:             string(mode),
		Status:           status,
		StepsOK:          report.Count(cleanup.StatusOK),
		StepsSkipped:     report.Count(cleanup.StatusSkipped),
		StepsFailed:      report.Count(cleanup.StatusFailed),
		OrphansFound:     orphansFound,
		ResourcesRemoved: removed,
		Duration:         elapsed.Round(time.Second).String(),
	})
	if err := history.Save(); err != nil {
		printWarning("failed to save history: %v", err)
	}
}
