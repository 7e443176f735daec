package vpn

import (
	"fmt"
	"os"
	"strings"
)

// ClientConfig holds everything needed to render a wg-quick client
// config pointed at the bastion
type ClientConfig struct {
	PrivateKey          string
	Address             string
	DNS                 string
	ServerPublicKey     string
	Endpoint            string
	AllowedIPs          string
	PersistentKeepalive int
}

// Render produces the wg-quick config file content
func (c ClientConfig) Render() string {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", c.PrivateKey)
	fmt.Fprintf(&b, "Address = %s\n", c.Address)
	if c.DNS != "" {
		fmt.Fprintf(&b, "DNS = %s\n", c.DNS)
	}

	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", c.ServerPublicKey)
	fmt.Fprintf(&b, "Endpoint = %s\n", c.Endpoint)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", c.AllowedIPs)
	if c.PersistentKeepalive > 0 {
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", c.PersistentKeepalive)
	}

	return b.String()
}

// WriteFile writes the rendered config with key-safe permissions
func (c ClientConfig) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(c.Render()), 0600); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}
