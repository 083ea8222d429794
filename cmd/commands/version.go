package commands

import (
	"github.com/spf13/cobra"

	"github.com/ncobase/spacearc/version"
)

// NewVersionCommand prints build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			version.Print()
		},
	}
}
