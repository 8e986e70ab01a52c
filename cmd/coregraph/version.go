package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coregraph/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show coregraph build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}
