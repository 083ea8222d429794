// Package commands defines the spacearc CLI.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spacearc",
		Short: "Archive X Spaces recordings and derived media",
	}

	rootCmd.AddCommand(
		NewServeCommand(),
		NewWorkerCommand(),
		NewMigrateCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}
