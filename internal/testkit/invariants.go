// Package testkit holds invariant checkers shared by tests: structural
// properties that must hold for every emission order and every computed
// layout, independent of the fixture that produced them.
package testkit

import (
	"fmt"

	"coregraph/internal/graph"
	"coregraph/internal/layout"
	"coregraph/internal/order"
	"coregraph/internal/types"
)

// CheckOrderInvariants verifies an emission order against its graph:
// 1) every declaration is defined exactly once (unbound forward tags are
//    forward-declared instead)
// 2) a forward declaration of a type precedes its definition
// 3) every strong edge points at a definition emitted earlier
func CheckOrderInvariants(g *graph.Graph, res *order.Result) error {
	if g == nil || res == nil {
		return fmt.Errorf("nil graph or result")
	}
	defPos := make(map[types.TypeID]int)
	fwdPos := make(map[types.TypeID]int)
	for i, em := range res.Emissions {
		if em.Fwd {
			if _, dup := fwdPos[em.ID]; !dup {
				fwdPos[em.ID] = i
			}
			continue
		}
		if prev, dup := defPos[em.ID]; dup {
			return fmt.Errorf("type#%d defined twice (emissions %d and %d)", em.ID, prev, i)
		}
		defPos[em.ID] = i
	}

	for _, id := range g.Decls {
		tt, ok := g.Types.Lookup(id)
		if !ok {
			return fmt.Errorf("decl type#%d unknown to the interner", id)
		}
		if tt.Kind == types.KindFwd {
			info, _ := g.Types.FwdInfo(id)
			if info != nil && info.Def == types.NoTypeID {
				if _, ok := fwdPos[id]; !ok {
					return fmt.Errorf("unbound tag type#%d never forward-declared", id)
				}
			}
			continue
		}
		if _, ok := defPos[id]; !ok {
			return fmt.Errorf("decl type#%d never defined", id)
		}
	}

	for id, fp := range fwdPos {
		if dp, ok := defPos[id]; ok && dp < fp {
			return fmt.Errorf("type#%d forward-declared at %d after its definition at %d", id, fp, dp)
		}
	}

	for _, e := range g.AllEdges() {
		if e.Kind != graph.Strong {
			continue
		}
		fromPos, ok := defPos[e.From]
		if !ok {
			// anonymous composites are emitted inline with their container
			continue
		}
		toPos, ok := defPos[targetOf(g.Types, e.To)]
		if !ok {
			return fmt.Errorf("%s: target never defined", e)
		}
		if toPos >= fromPos {
			return fmt.Errorf("%s: target defined at %d, source at %d", e, toPos, fromPos)
		}
	}
	return nil
}

// targetOf follows a bound forward tag to its definition so the position
// lookup matches whichever node was actually emitted.
func targetOf(in *types.Interner, id types.TypeID) types.TypeID {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != types.KindFwd {
		return id
	}
	info, _ := in.FwdInfo(id)
	if info != nil && info.Def != types.NoTypeID {
		return info.Def
	}
	return id
}

// CheckLayoutInvariants verifies a computed layout: power-of-two alignment,
// size rounded to it, every field inside the type, bit widths inside their
// storage unit, offsets aligned to the recorded field alignment.
func CheckLayoutInvariants(eng *layout.Engine, id types.TypeID) error {
	tl, err := eng.LayoutOf(id)
	if err != nil {
		return err
	}
	if tl.Align <= 0 || tl.Align&(tl.Align-1) != 0 {
		return fmt.Errorf("type#%d: alignment %d is not a power of two", id, tl.Align)
	}
	if tl.Size < 0 || tl.Size%tl.Align != 0 {
		return fmt.Errorf("type#%d: size %d not rounded to alignment %d", id, tl.Size, tl.Align)
	}
	for i, f := range tl.Fields {
		if f.ByteOffset < 0 {
			return fmt.Errorf("type#%d field %d: negative offset %d", id, i, f.ByteOffset)
		}
		if f.Align > 0 && f.ByteOffset%f.Align != 0 {
			return fmt.Errorf("type#%d field %d: offset %d not aligned to %d", id, i, f.ByteOffset, f.Align)
		}
		if f.ByteOffset+f.Size > tl.Size {
			if !(tl.Flexible && i == len(tl.Fields)-1 && f.Size == 0) {
				return fmt.Errorf("type#%d field %d: [%d,%d) outside size %d", id, i, f.ByteOffset, f.ByteOffset+f.Size, tl.Size)
			}
		}
		if f.BitWidth > 0 && (f.BitOffset < 0 || f.BitWidth > f.Size*8) {
			return fmt.Errorf("type#%d field %d: %d bits at bit %d do not fit a %d-byte unit", id, i, f.BitWidth, f.BitOffset, f.Size)
		}
	}
	return nil
}
