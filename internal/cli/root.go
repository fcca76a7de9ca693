// Package cli implements the trademonitor command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/rickgao/trademonitor/internal/version"
)

// NewRootCmd builds the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "trademonitor",
		Short:   "Infer peer-to-peer trades from marketplace ownership changes",
		Version: version.String(),
		Long: `trademonitor watches the ownership history of limited items, infers the
trades behind ownership changes, and serves the inferred trades over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to config file (defaults apply when empty)")

	root.AddCommand(RunCmd())
	root.AddCommand(TradesCmd())
	return root
}
