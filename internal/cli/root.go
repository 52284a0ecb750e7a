// Package cli implements the loadtest command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "loadtest",
	Short:   "Synthetic load generator for vendor order APIs",
	Version: version,
	Long: `Loadtest drives vendor order-management APIs with many concurrent
simulated clients, ramping the request rate along a configurable stage
curve and sequencing order/release call pairs with the required delay.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the command tree. Called once from main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(runCmd)
}
