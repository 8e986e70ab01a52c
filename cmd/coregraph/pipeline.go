package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"coregraph/internal/declfile"
	"coregraph/internal/graph"
	"coregraph/internal/layout"
	"coregraph/internal/observ"
	"coregraph/internal/types"
)

// pipeline carries one declaration file through the analysis stages every
// subcommand shares: load, graph, layout engine.
type pipeline struct {
	path  string
	set   *declfile.Set
	graph *graph.Graph
	eng   *layout.Engine
	timer *observ.Timer
}

func loadPipeline(path string) (*pipeline, error) {
	timer := observ.NewTimer()

	done := timer.Phase("load")
	set, err := declfile.Load(path)
	if err != nil {
		return nil, err
	}
	done(fmt.Sprintf("%d decls", len(set.Decls)))

	done = timer.Phase("graph")
	g, err := graph.NewBuilder(set.Types).Build(set.Decls)
	if err != nil {
		return nil, err
	}
	done(fmt.Sprintf("%d edges", len(g.AllEdges())))

	target, err := targetFor(set.Target)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		path:  path,
		set:   set,
		graph: g,
		eng:   layout.New(target, set.Types),
		timer: timer,
	}, nil
}

// finish prints the phase table when --timings is set.
func (p *pipeline) finish(cmd *cobra.Command) {
	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		fmt.Fprint(os.Stderr, p.timer.Summary())
	}
}

func quiet(cmd *cobra.Command) bool {
	q, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return q
}

func verbose(cmd *cobra.Command) bool {
	v, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	return v
}

// targetFor maps a declaration file's target triple to a layout target.
// An empty triple falls back to x86_64-linux-gnu.
func targetFor(triple string) (layout.Target, error) {
	switch triple {
	case "", "x86_64-linux-gnu":
		return layout.X86_64LinuxGNU(), nil
	default:
		return layout.Target{}, fmt.Errorf("unsupported target %q", triple)
	}
}

// findDecl resolves a declaration by name, accepting both bare names and
// tagged references like "struct s".
func findDecl(p *pipeline, name string) (types.TypeID, error) {
	want := name
	for _, kw := range []string{"struct ", "union ", "enum "} {
		if strings.HasPrefix(want, kw) {
			want = strings.TrimPrefix(want, kw)
			break
		}
	}
	for _, id := range p.set.Decls {
		if p.set.Types.NameOf(id) == want {
			return id, nil
		}
	}
	return types.NoTypeID, fmt.Errorf("%s: no declaration named %q", p.path, name)
}

// declName renders a declaration for listings: "struct s", "typedef s_t".
func declName(in *types.Interner, id types.TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return fmt.Sprintf("type#%d", id)
	}
	name := in.NameOf(id)
	if name == "" {
		name = fmt.Sprintf("<anon#%d>", id)
	}
	switch tt.Kind {
	case types.KindStruct:
		return "struct " + name
	case types.KindUnion:
		return "union " + name
	case types.KindEnum:
		return "enum " + name
	case types.KindTypedef:
		return "typedef " + name
	case types.KindFwd:
		info, _ := in.FwdInfo(id)
		if info != nil && info.IsUnion {
			return "union " + name
		}
		return "struct " + name
	default:
		return name
	}
}
