package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chalkan3/bastion-vpn/pkg/config"
	"github.com/chalkan3/bastion-vpn/pkg/operations"
	"github.com/chalkan3/bastion-vpn/pkg/terraform"
	"github.com/chalkan3/bastion-vpn/pkg/vpn"
)

const (
	defaultClientAddress = "10.8.0.2/24"
	defaultAllowedIPs    = "10.8.0.0/24"
	defaultWireguardPort = 51820
	defaultKeepalive     = 25
)

var vpnOutputPath string

var vpnCmd = &cobra.Command{
	Use:   "vpn",
	Short: "Manage the workstation WireGuard tunnel",
	Long: `Manage the local half of the WireGuard tunnel to the bastion:
generate a client config from the deployed server's outputs, or bring
the tracked tunnel down.`,
}

var vpnClientConfigCmd = &cobra.Command{
	Use:   "client-config",
	Short: "Generate a WireGuard client config for the deployed bastion",
	Long: `Generate a wg-quick client config pointed at the deployed bastion.
The server endpoint and public key are read from Terraform outputs, a
fresh client keypair is generated locally, and the resulting interface
is recorded so cleanup can later identify it.

The private key never leaves this machine; register the printed client
public key on the server side.`,
	Example: `  # Write <project>-wg0.conf into the WireGuard directory
  sudo bastion-vpn vpn client-config

  # Write somewhere else, e.g. to inspect before installing
  bastion-vpn vpn client-config --output ./client.conf`,
	RunE: runVPNClientConfig,
}

var vpnDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the tracked WireGuard tunnel",
	Long: `Stop the WireGuard interface this tool brought up, remove its config
file and clear the state record. Does nothing to interfaces it did not
create.`,
	Example: `  sudo bastion-vpn vpn down`,
	RunE: runVPNDown,
}

func init() {
	rootCmd.AddCommand(vpnCmd)
	vpnCmd.AddCommand(vpnClientConfigCmd)
	vpnCmd.AddCommand(vpnDownCmd)

	vpnClientConfigCmd.Flags().StringVarP(&vpnOutputPath, "output", "o", "", "Write the config to this path instead of the WireGuard directory")
}

func runVPNClientConfig(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	project, err := loadProject()
	if err != nil {
		return err
	}

	tf := terraform.New(project.TerraformDir, log)
	if !tf.HasState() {
		return fmt.Errorf("no terraform state in %s: deploy the infrastructure first", tf.Dir())
	}

	bastionIP, err := tf.Output(ctx, "bastion_public_ip")
	if err != nil {
		return fmt.Errorf("failed to read bastion_public_ip output: %w", err)
	}
	serverPublicKey, err := tf.Output(ctx, "vpn_server_public_key")
	if err != nil {
		return fmt.Errorf("failed to read vpn_server_public_key output: %w", err)
	}

	privateKey, publicKey, err := vpn.GenerateKeypair()
	if err != nil {
		return err
	}

	clientConfig := vpn.ClientConfig{
		PrivateKey:          privateKey,
		Address:             defaultClientAddress,
		ServerPublicKey:     serverPublicKey,
		Endpoint:            fmt.Sprintf("%s:%d", bastionIP, defaultWireguardPort),
		AllowedIPs:          defaultAllowedIPs,
		PersistentKeepalive: defaultKeepalive,
	}

	iface := project.Name + "-wg0"
	outputPath := vpnOutputPath
	if outputPath == "" {
		outputPath = filepath.Join(project.WireguardDir, iface+".conf")
	}

	if err := clientConfig.WriteFile(outputPath); err != nil {
		recordVPNOperation(project, "client-config", iface, bastionIP, "failed", err)
		return err
	}

	// Only a config landing in the WireGuard directory becomes the
	// tracked interface; --output elsewhere is just a file.
	tracked := vpnOutputPath == ""
	if tracked {
		store, err := vpn.NewStateStore(project.DataDir(), project.Name)
		if err != nil {
			return err
		}
		if err := store.Save(&vpn.StateRecord{InterfaceName: iface, EndpointIP: bastionIP}); err != nil {
			return err
		}
	}

	recordVPNOperation(project, "client-config", iface, bastionIP, "success", nil)

	printSuccess("Client config written to %s", outputPath)
	printInfo("Client public key (register on the server): %s", publicKey)
	if tracked {
		printInfo("Bring the tunnel up with: wg-quick up %s", iface)
	}
	return nil
}

func runVPNDown(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	project, err := loadProject()
	if err != nil {
		return err
	}

	store, err := vpn.NewStateStore(project.DataDir(), project.Name)
	if err != nil {
		return err
	}

	reconciler := vpn.NewReconciler(store, project.WireguardDir, log)
	iface, err := reconciler.TeardownTracked(ctx)
	if errors.Is(err, vpn.ErrNoRecord) {
		printInfo("No tracked WireGuard interface, nothing to do")
		return nil
	}
	if err != nil {
		recordVPNOperation(project, "down", iface, "", "failed", err)
		return err
	}

	recordVPNOperation(project, "down", iface, "", "success", nil)
	printSuccess("Stopped WireGuard interface %s and removed its config", iface)
	return nil
}

func recordVPNOperation(project *config.Project, operation, iface, endpoint, status string, opErr error) {
	history, err := operations.Load(project.DataDir())
	if err != nil {
		printWarning("failed to load history: %v", err)
		return
	}

	entry := operations.VPNEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Operation: operation,
		Interface: iface,
		Endpoint:  endpoint,
		Status:    status,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	history.AddVPN(entry)
	if err := history.Save(); err != nil {
		printWarning("failed to save history: %v", err)
	}
}
