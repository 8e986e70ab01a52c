package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"coregraph/internal/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph [flags] FILE.toml",
	Short: "Print the classified type dependency graph",
	Long:  `Graph loads a declaration file and prints every node with its strong (value embedding) and weak (pointer, prototype) dependency edges`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	p, err := loadPipeline(args[0])
	if err != nil {
		return err
	}
	defer p.finish(cmd)

	out := cmd.OutOrStdout()
	strong := color.New(color.FgRed)
	weak := color.New(color.FgCyan)

	for _, id := range p.graph.Decls {
		fmt.Fprintf(out, "%s\n", declName(p.set.Types, id))
		for _, e := range p.graph.Edges(id) {
			kind := weak.Sprint("weak")
			if e.Kind == graph.Strong {
				kind = strong.Sprint("strong")
			}
			fmt.Fprintf(out, "  -%s-> %s\n", kind, declName(p.set.Types, e.To))
		}
	}
	return nil
}
