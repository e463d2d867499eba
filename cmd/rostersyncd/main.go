// Command rostersyncd runs the reference roster sync server.
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
		Use:   "rostersyncd",
		Short: "Reference roster sync server",
		Long: `rostersyncd relays each client's latest fixed-size record to every
other connected client.

Examples:
  rostersyncd serve
  rostersyncd serve --addr=0.0.0.0:9999 --size=128 --connections=32
  rostersyncd serve --admin=:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
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
			fmt.Printf("rostersyncd %s (%s)\n", version, commit)
		},
	}
}
