// Package cli defines the Cobra command tree for the recallmesh daemon
// and its maintenance commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var configPath string

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recallmesh",
	Short: "Hybrid retrieval and memory relation engine",
	Long: `Recallmesh stores captured text as summarized memories, retrieves them
through blended keyword and semantic search, and maintains a relation
mesh connecting memories by meaning, topic, and time.

Run 'recallmesh serve' to start the HTTP service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(
		newServeCmd(),
		newCleanupCmd(),
		newRelinkCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("recallmesh %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
