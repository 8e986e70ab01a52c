package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"coregraph/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "coregraph",
	Short: "C type graph analysis toolkit",
	Long:  `coregraph classifies type dependency graphs, orders declarations, computes ABI layouts and resolves field relocations against rearranged targets`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Bool("verbose", false, "trace analysis details to stderr")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		colorFlag, _ := cmd.Root().PersistentFlags().GetString("color")
		switch colorFlag {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		default:
			color.NoColor = !isTerminal(os.Stdout)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
