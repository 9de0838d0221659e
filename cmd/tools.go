package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lunardrift/lunardrift/internal/config"
	"github.com/lunardrift/lunardrift/internal/container"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [name]",
	Short: "List available tools, or show one tool's parameters",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTools,
}

func runTools(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	all := c.Registry().All(ctx)

	if len(args) == 1 {
		t, ok := all[args[0]]
		if !ok {
			return fmt.Errorf("no tool named %q", args[0])
		}
		fmt.Printf("%s\n\n%s\n", t.Name(), t.Description())
		var buf bytes.Buffer
		if err := json.Indent(&buf, t.Parameters(), "", "  "); err == nil {
			fmt.Printf("\nParameters:\n%s\n", buf.String())
		}
		return nil
	}

	names := c.Registry().Names(ctx)
	fmt.Printf("%s %d tool(s) available:\n\n", logo, len(names))
	for _, name := range names {
		fmt.Printf("  %-24s %s\n", name, all[name].Description())
	}
	return nil
}
