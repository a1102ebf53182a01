// Kommander Bridge - control-surface bridge for Kommander media servers.
//
// This is the main entry point. The bridge keeps one websocket connection
// to a Kommander device, exports its state as variables and feedbacks over
// MQTT and the HTTP API, and turns control-surface actions into device
// commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the binary without a
// subcommand starts the bridge.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "kommander",
		Short: "Kommander control-surface bridge",
		Long: `Kommander bridge - connects control surfaces to a Kommander media server.

Commands:
  kommander run            Run the bridge (default)
  kommander validate       Check a configuration file
  kommander actions        List the action catalog
  kommander version        Print build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "configuration file (env KOMMANDER_CONFIG)")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newValidateCmd(&configPath))
	root.AddCommand(newActionsCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "kommander %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}

// getConfigPath returns the configuration file path.
// Uses KOMMANDER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KOMMANDER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
