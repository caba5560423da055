// Package cmd provides the command-line interface for simplemem.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCmd creates the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simplemem",
		Short: "simplemem simulates requesters, a cache and a memory controller.",
		Long: `simplemem simulates a blocking cache in front of a fixed-latency ` +
			`memory controller, driven by scripted or random requesters.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScenarioCmd())

	return rootCmd
}

// Execute runs the root command. Exit handlers registered with atexit, such
// as the flush of the data recorder, run before the process exits.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
