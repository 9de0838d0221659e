package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lunardrift/lunardrift/internal/config"
	"github.com/lunardrift/lunardrift/internal/mcp"
)

var authCmd = &cobra.Command{
	Use:   "auth <server>",
	Short: "Authorize against a configured MCP server",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuth,
}

func runAuth(_ *cobra.Command, args []string) error {
	server := args[0]

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sc, ok := cfg.MCPServers[server]
	if !ok {
		return fmt.Errorf("no MCP server named %q in config", server)
	}

	store, err := config.OpenCredentialStore(config.CredentialsPath())
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mcp.Authenticate(ctx, server, sc, store); err != nil {
		return fmt.Errorf("authorize %q: %w", server, err)
	}
	fmt.Printf("%s Authorized with %q. Token saved.\n", logo, server)
	return nil
}
