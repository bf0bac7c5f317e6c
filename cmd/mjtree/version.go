package main

import (
	"fmt"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/internal/cli"
	"github.com/aretw0/mjtree/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mjtree",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if cli.IsTerminal(out) {
			tui.PrintBanner(out, mjtree.Version)
			return
		}
		fmt.Fprintf(out, "mjtree version %s\n", mjtree.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
