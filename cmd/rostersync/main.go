// Command rostersync is a demo client: it publishes a payload to a roster
// sync server and prints the roster it receives back.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rostersync",
		Short: "Roster sync demo client",
		Long: `rostersync joins a roster sync server, publishes a payload every
interval and prints the other clients' records.

Examples:
  rostersync run --payload=hello
  rostersync run --host=sync.local --network=ws --port=8080 --count=10`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rostersync %s (%s)\n", version, commit)
		},
	}
}
