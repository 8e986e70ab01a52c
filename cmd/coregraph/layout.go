package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"coregraph/internal/dcache"
	"coregraph/internal/layout"
	"coregraph/internal/types"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [flags] FILE.toml",
	Short: "Compute sizes, alignments and member offsets",
	Long:  `Layout computes the ABI layout of every declaration: aggregate size and alignment, member byte offsets, and bit-field storage-unit placement`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

func init() {
	layoutCmd.Flags().Bool("cache", false, "reuse layouts cached on disk for this declaration set")
	layoutCmd.Flags().String("cache-dir", "", "cache directory (default: XDG cache)")
}

func runLayout(cmd *cobra.Command, args []string) error {
	p, err := loadPipeline(args[0])
	if err != nil {
		return err
	}
	defer p.finish(cmd)

	useCache, _ := cmd.Flags().GetBool("cache")
	var cached *dcache.Payload
	var cache *dcache.Cache
	var key dcache.Digest
	if useCache {
		cache, key, cached, err = openLayoutCache(cmd, p)
		if err != nil {
			return err
		}
	}

	done := p.timer.Phase("layout")
	out := cmd.OutOrStdout()
	computed := 0
	for _, id := range p.set.Decls {
		tt, _ := p.set.Types.Lookup(id)
		switch tt.Kind {
		case types.KindStruct, types.KindUnion, types.KindEnum, types.KindTypedef:
		default:
			continue
		}

		tl, hit := cached.Lookup(id)
		if !hit {
			var lerr error
			tl, lerr = p.eng.LayoutOf(id)
			if lerr != nil {
				var le *layout.LayoutError
				if errors.As(lerr, &le) && le.Kind == layout.LayoutErrIncomplete {
					fmt.Fprintf(out, "%s: incomplete\n", declName(p.set.Types, id))
					continue
				}
				return lerr
			}
			computed++
		}
		printLayout(out, p, id, tl)
	}
	done(fmt.Sprintf("%d computed", computed))

	if cache != nil && cached == nil {
		if err := cache.Put(key, dcache.Snapshot(p.eng, p.set.Decls, p.set.Target)); err != nil && !quiet(cmd) {
			fmt.Fprintf(os.Stderr, "warning: failed to write layout cache: %v\n", err)
		}
	}
	return nil
}

// openLayoutCache opens the disk cache and looks up the payload for this
// declaration file + target combination.
func openLayoutCache(cmd *cobra.Command, p *pipeline) (*dcache.Cache, dcache.Digest, *dcache.Payload, error) {
	dir, _ := cmd.Flags().GetString("cache-dir")
	var cache *dcache.Cache
	var err error
	if dir != "" {
		cache, err = dcache.OpenAt(dir)
	} else {
		cache, err = dcache.Open("coregraph")
	}
	if err != nil {
		return nil, dcache.Digest{}, nil, err
	}
	doc, err := os.ReadFile(p.path)
	if err != nil {
		return nil, dcache.Digest{}, nil, err
	}
	key := dcache.SetDigest(doc, p.set.Target)
	payload, ok, err := cache.Get(key)
	if err != nil {
		return nil, dcache.Digest{}, nil, err
	}
	if !ok {
		payload = nil
	}
	return cache, key, payload, nil
}

func printLayout(out io.Writer, p *pipeline, id types.TypeID, tl layout.TypeLayout) {
	fmt.Fprintf(out, "%s: size=%d align=%d", declName(p.set.Types, id), tl.Size, tl.Align)
	if tl.Flexible {
		fmt.Fprint(out, " flexible")
	}
	fmt.Fprintln(out)

	members := p.set.Types.Members(p.set.Types.Underlying(id))
	for i, fl := range tl.Fields {
		name := "<anon>"
		if i < len(members) && !members[i].Anonymous() {
			name = p.set.Strings.MustLookup(members[i].Name)
		}
		if fl.BitWidth > 0 {
			fmt.Fprintf(out, "  +%-4d %s: unit=%d bit=%d width=%d\n", fl.ByteOffset, name, fl.Size, fl.BitOffset, fl.BitWidth)
			continue
		}
		fmt.Fprintf(out, "  +%-4d %s (size=%d align=%d)\n", fl.ByteOffset, name, fl.Size, fl.Align)
	}
}
