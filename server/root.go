// Package server wires the asset server's components together into a
// runnable process and exposes the cobra commands cmd/assetd's main
// package invokes. Grounded on the teacher's registry package: a root
// command that only prints usage (or the version, with -v), with a serve subcommand
// doing the actual construction and lifecycle work.
package server

import (
	"github.com/spf13/cobra"

	assetdversion "github.com/hearthworld/assetd/version"
)

func init() {
	RootCmd.AddCommand(ServeCmd)
}

var showVersion bool

// RootCmd is the main command for the assetd binary.
var RootCmd = &cobra.Command{
	Use:   "assetd",
	Short: "assetd serves and bakes assets for the platform's virtual-world clients",
	Long:  "assetd serves and bakes assets for the platform's virtual-world clients",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			assetdversion.Print()
			return
		}
		// nolint:errcheck
		cmd.Usage()
	},
}

func init() {
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
}
