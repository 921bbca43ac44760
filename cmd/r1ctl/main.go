// R1ctl is a command line client for R1 espresso machine controllers.
//
// It connects to a controller over HTTP and WebSocket, provides machine
// state control, shot settings, profile management, scale commands and a
// live telemetry monitor. Controllers can be located via mDNS discovery
// or addressed directly with --host.
//
// Usage:
//
//	r1ctl [command] [flags]
//
// See 'r1ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/r1ctl/internal/logging"
	"github.com/muurk/r1ctl/internal/version"
)

func main() {
	_ = logging.InitializeFromEnv()
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "r1ctl",
	Short: "R1 Espresso Controller Client",
	Long: `A command line client for R1 espresso machine controllers.

Provides controller discovery, machine state control, shot settings,
profile management, scale commands and a live telemetry monitor.

If no command is specified, the controller status is shown.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: show status when no subcommand provided
		return runStatus(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("r1ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
