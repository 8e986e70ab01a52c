package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coregraph/internal/cdump"
	"coregraph/internal/order"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] FILE.toml",
	Short: "Render the declaration set as C source",
	Long:  `Dump orders the declarations and prints them as compilable C: forward declarations, definitions and typedefs in dependency order`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	p, err := loadPipeline(args[0])
	if err != nil {
		return err
	}
	defer p.finish(cmd)

	done := p.timer.Phase("order")
	res, err := order.New(p.graph).Order(nil)
	if err != nil {
		return fmt.Errorf("%s: %w", p.path, err)
	}
	done(fmt.Sprintf("%d emissions", len(res.Emissions)))

	done = p.timer.Phase("dump")
	err = cdump.New(p.set.Types).Print(cmd.OutOrStdout(), res)
	done("")
	return err
}
