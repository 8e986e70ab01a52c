package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"coregraph/internal/diag"
	"coregraph/internal/diagfmt"
	"coregraph/internal/order"
)

var orderCmd = &cobra.Command{
	Use:   "order [flags] FILE.toml",
	Short: "Print the deterministic emission order",
	Long:  `Order computes the declaration emission order, inserting forward declarations where pointer edges break dependency cycles`,
	Args:  cobra.ExactArgs(1),
	RunE:  runOrder,
}

func init() {
	orderCmd.Flags().Int("max-diagnostics", 100, "maximum number of diagnostics to record")
}

func runOrder(cmd *cobra.Command, args []string) error {
	p, err := loadPipeline(args[0])
	if err != nil {
		return err
	}
	defer p.finish(cmd)

	maxDiags, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	done := p.timer.Phase("order")
	bag := diag.NewBag(maxDiags)
	res, err := order.New(p.graph).Order(bag)
	if err != nil {
		var ice *order.IllegalCycleError
		if errors.As(err, &ice) {
			return fmt.Errorf("%s: %w", p.path, ice)
		}
		return err
	}
	done(fmt.Sprintf("%d emissions", len(res.Emissions)))

	out := cmd.OutOrStdout()
	for _, em := range res.Emissions {
		if em.Fwd {
			fmt.Fprintf(out, "fwd %s\n", declName(p.set.Types, em.ID))
			continue
		}
		fmt.Fprintf(out, "%s\n", declName(p.set.Types, em.ID))
	}

	if !quiet(cmd) && bag.Len() > 0 {
		bag.Sort()
		diagfmt.Pretty(os.Stderr, bag, p.set.Types, diagfmt.PrettyOpts{Color: !color.NoColor})
	}
	return nil
}
