package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coregraph/internal/reloc"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [flags] FILE.toml",
	Short: "Resolve field accesses against a target declaration set",
	Long: `Resolve re-applies a field access recorded against FILE.toml to a target
declaration set whose types may have been rearranged, reporting the target
byte offset, size and bit placement. The target defaults to FILE.toml itself;
pass --target-file to resolve against a different set`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("root", "", "root type the access starts from (required)")
	resolveCmd.Flags().String("path", "", "source-form access path, e.g. a.b[2].c")
	resolveCmd.Flags().String("spec", "", "integer access spec against the local definition, e.g. 0:1:2")
	resolveCmd.Flags().String("target-file", "", "declaration file to resolve against")
	resolveCmd.Flags().Int("jobs", 0, "max concurrent resolutions (0 = unlimited)")
	_ = resolveCmd.MarkFlagRequired("root")
}

func runResolve(cmd *cobra.Command, args []string) error {
	rootName, _ := cmd.Flags().GetString("root")
	pathExpr, _ := cmd.Flags().GetString("path")
	specExpr, _ := cmd.Flags().GetString("spec")
	targetFile, _ := cmd.Flags().GetString("target-file")
	if (pathExpr == "") == (specExpr == "") {
		return fmt.Errorf("exactly one of --path and --spec is required")
	}

	local, err := loadPipeline(args[0])
	if err != nil {
		return err
	}
	defer local.finish(cmd)

	target := local
	if targetFile != "" {
		target, err = loadPipeline(targetFile)
		if err != nil {
			return err
		}
	}

	r := reloc.NewResolver(
		&reloc.View{Graph: local.graph, Layout: local.eng},
		&reloc.View{Graph: target.graph, Layout: target.eng},
	)
	if verbose(cmd) {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
		r.Trace = logger.Sugar().Infof
	}

	done := local.timer.Phase("resolve")
	defer func() { done("") }()

	out := cmd.OutOrStdout()
	if specExpr != "" {
		spec, err := reloc.ParseSpec(specExpr)
		if err != nil {
			return err
		}
		localRoot, err := findDecl(local, rootName)
		if err != nil {
			return err
		}
		res, err := r.ResolveRecord(reloc.Record{Root: localRoot, Spec: spec})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "local  %s\n", renderReloc(local, res.Local))
		fmt.Fprintf(out, "target %s\n", renderReloc(target, res.Target))
		return nil
	}

	steps, err := parsePath(pathExpr)
	if err != nil {
		return err
	}
	targetRoot, err := findDecl(target, rootName)
	if err != nil {
		return err
	}
	rel, err := r.ResolveNamed(targetRoot, steps)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "target %s\n", renderReloc(target, rel))
	return nil
}

func renderReloc(p *pipeline, rel reloc.Relocation) string {
	s := fmt.Sprintf("%s spec=%s offset=%d size=%d",
		declName(p.set.Types, rel.Root), rel.Spec, rel.ByteOffset, rel.Size)
	if rel.BitWidth > 0 {
		s += fmt.Sprintf(" bit=%d width=%d", rel.BitOffset, rel.BitWidth)
	}
	return s
}

// parsePath turns "a.b[2].c" into access steps. A leading "[N]" indexes the
// root as an array; later bracket groups index array members.
func parsePath(expr string) ([]reloc.Step, error) {
	var steps []reloc.Step
	if strings.HasPrefix(expr, ".") {
		return nil, fmt.Errorf("path %q: leading dot", expr)
	}
	rest := expr
	for rest != "" {
		switch {
		case rest[0] == '.':
			rest = rest[1:]
			if rest == "" {
				return nil, fmt.Errorf("path %q: trailing dot", expr)
			}
		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q: missing ]", expr)
			}
			n, err := strconv.ParseUint(rest[1:end], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("path %q: bad index %q", expr, rest[1:end])
			}
			steps = append(steps, reloc.Step{Index: uint32(n), IsIndex: true})
			rest = rest[end+1:]
		default:
			i := strings.IndexAny(rest, ".[")
			name := rest
			if i >= 0 {
				name = rest[:i]
				rest = rest[i:]
			} else {
				rest = ""
			}
			if name == "" {
				return nil, fmt.Errorf("path %q: empty field name", expr)
			}
			steps = append(steps, reloc.Step{Name: name})
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("empty access path")
	}
	return steps, nil
}
