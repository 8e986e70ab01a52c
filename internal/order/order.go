// Package order computes a deterministic declaration-emission order for a
// type graph: every value embedding sees its dependency fully defined first,
// while cycles that contain a pointer edge are broken by inserting a forward
// declaration for that edge's target. The traversal is an emit-state DFS over
// the declarations in input order, so identical inputs always produce
// identical output, including the break choices.
package order

import (
	"coregraph/internal/diag"
	"coregraph/internal/graph"
	"coregraph/internal/types"
)

// Emission is one step of the final order: either a forward declaration or a
// full definition of the type.
type Emission struct {
	ID  types.TypeID
	Fwd bool
}

// Break records one broken weak edge: a forward declaration of To was
// emitted to satisfy From's reference instead of a full definition.
type Break struct {
	From types.TypeID
	To   types.TypeID
}

// Result is the complete ordering decision for one declaration set.
type Result struct {
	Emissions []Emission
	Breaks    []Break
}

type emitState uint8

const (
	notEmitted emitState = iota
	emitting
	emitted
)

// frame is one DFS stack entry. weak records the kind of the edge that was
// used to enter the node; it is what cycle classification inspects.
type frame struct {
	id   types.TypeID
	weak bool
}

// Orderer runs the emission DFS. Not safe for concurrent use; build one per
// Order call site (the resulting Result is plain data and freely shareable).
type Orderer struct {
	g *graph.Graph

	state   []emitState
	fwdDone []bool
	stack   []frame

	out    []Emission
	breaks []Break
}

func New(g *graph.Graph) *Orderer {
	return &Orderer{
		g:       g,
		state:   make([]emitState, g.Types.Len()),
		fwdDone: make([]bool, g.Types.Len()),
	}
}

// noUnwind means a recursion step completed without cancelling any
// in-progress emission.
const noUnwind = -1

// Order produces the emission order. Cycle-break decisions are reported on
// bag (SevInfo) when one is supplied; a cycle held together purely by value
// embedding is an *IllegalCycleError.
func (o *Orderer) Order(bag *diag.Bag) (*Result, error) {
	for _, decl := range o.g.Decls {
		if info, ok := o.g.Types.FwdInfo(decl); ok {
			if info.Def != types.NoTypeID {
				// The definition is its own declaration; the fwd is noise.
				continue
			}
			o.appendFwd(decl)
			continue
		}
		if _, err := o.emitRef(decl, false, types.NoTypeID, false); err != nil {
			return nil, err
		}
	}
	if bag != nil {
		for _, br := range o.breaks {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevInfo,
				Code:     diag.OrderCycleBreak,
				Subject:  br.From,
				Message: "weak cycle broken: forward declaration of " +
					displayName(o.g.Types, br.To) + " precedes " + displayName(o.g.Types, br.From),
			})
		}
	}
	return &Result{Emissions: o.out, Breaks: o.breaks}, nil
}

// emitRef walks one type reference. weak tracks whether the reference chain
// passed through a pointer; protoCtx marks references reached through a
// function prototype, which never require more than a forward declaration.
func (o *Orderer) emitRef(t types.TypeID, weak bool, container types.TypeID, protoCtx bool) (int, error) {
	tt, ok := o.g.Types.Lookup(t)
	if !ok {
		return noUnwind, nil
	}
	switch tt.Kind {
	case types.KindConst, types.KindVolatile, types.KindRestrict:
		return o.emitRef(tt.Elem, weak, container, protoCtx)
	case types.KindPtr:
		return o.emitRef(tt.Elem, true, container, protoCtx)
	case types.KindArray:
		return o.emitRef(tt.Elem, weak, container, protoCtx)
	case types.KindFuncProto:
		info, _ := o.g.Types.FuncProtoInfo(t)
		if info == nil {
			return noUnwind, nil
		}
		if r, err := o.emitRef(info.Result, true, container, true); r != noUnwind || err != nil {
			return r, err
		}
		for _, p := range info.Params {
			if r, err := o.emitRef(p.Type, true, container, true); r != noUnwind || err != nil {
				return r, err
			}
		}
		return noUnwind, nil
	case types.KindFwd:
		info, _ := o.g.Types.FwdInfo(t)
		if info != nil && info.Def != types.NoTypeID {
			return o.emitNode(info.Def, weak, container, protoCtx)
		}
		// A tag that is never defined: a forward declaration is all there is.
		o.appendFwd(t)
		return noUnwind, nil
	case types.KindStruct, types.KindUnion:
		if o.g.Types.Name(t) == 0 {
			// Anonymous composites are printed inline by their enclosing
			// declaration; only their member references matter for ordering.
			for _, m := range o.g.Types.Members(t) {
				if r, err := o.emitRef(m.Type, false, t, protoCtx); r != noUnwind || err != nil {
					return r, err
				}
			}
			return noUnwind, nil
		}
		return o.emitNode(t, weak, container, protoCtx)
	case types.KindEnum, types.KindTypedef:
		return o.emitNode(t, weak, container, protoCtx)
	default:
		// Primitives need no declaration.
		return noUnwind, nil
	}
}

// emitNode runs the state machine for one named declaration.
func (o *Orderer) emitNode(id types.TypeID, weak bool, container types.TypeID, protoCtx bool) (int, error) {
	switch o.state[id] {
	case emitted:
		return noUnwind, nil

	case emitting:
		if id == container {
			// Self-reference through a pointer inside the type's own
			// definition: the tag is already in scope, no fwd needed.
			return noUnwind, nil
		}
		if protoCtx {
			if forwardable(o.g.Types, id) {
				o.appendFwd(id)
			}
			return noUnwind, nil
		}
		return o.breakCycle(id, weak)

	default: // notEmitted
	}

	if protoCtx && forwardable(o.g.Types, id) {
		// Referenced through a function prototype: a forward declaration
		// suffices, the full definition keeps its natural position.
		o.appendFwd(id)
		return noUnwind, nil
	}

	o.state[id] = emitting
	o.stack = append(o.stack, frame{id: id, weak: weak})
	depth := len(o.stack) - 1

	r, err := o.emitDeps(id, weak, protoCtx)
	if err != nil {
		return 0, err
	}
	if r != noUnwind && r < depth {
		// A cycle break cancelled this emission; retry later from scratch.
		o.state[id] = notEmitted
		o.stack = o.stack[:len(o.stack)-1]
		return r, nil
	}

	o.stack = o.stack[:len(o.stack)-1]
	o.out = append(o.out, Emission{ID: id})
	o.state[id] = emitted
	return noUnwind, nil
}

// emitDeps visits the dependencies of one node mid-emission.
func (o *Orderer) emitDeps(id types.TypeID, weak bool, protoCtx bool) (int, error) {
	depth := len(o.stack) - 1
	tt := o.g.Types.MustLookup(id)
	switch tt.Kind {
	case types.KindStruct, types.KindUnion:
		for _, m := range o.g.Types.Members(id) {
			r, err := o.emitRef(m.Type, false, id, protoCtx)
			if err != nil {
				return 0, err
			}
			if r != noUnwind && r != depth {
				return r, nil
			}
			// r == depth: the offending reference was satisfied with a
			// forward declaration, keep going with the next member.
		}
	case types.KindTypedef:
		info, _ := o.g.Types.TypedefInfo(id)
		if info != nil && info.Target != types.NoTypeID {
			// The alias inherits the weakness of the edge that reached it: a
			// pointer to a typedef needs only a fwd of the aliased tag.
			r, err := o.emitRef(info.Target, weak, types.NoTypeID, protoCtx)
			if err != nil {
				return 0, err
			}
			if r != noUnwind && r != depth {
				return r, nil
			}
		}
	case types.KindEnum:
		// No dependencies.
	}
	return noUnwind, nil
}

// breakCycle handles re-entry into an in-progress emission. The DFS stack
// from the re-entered node to the top, plus the closing edge, is the cycle.
// The first weak edge along it (in discovery order, which is declaration
// order) whose target can be forward-declared is broken; a cycle with no
// such edge is a definitional impossibility.
func (o *Orderer) breakCycle(reentered types.TypeID, closingWeak bool) (int, error) {
	p := -1
	for i, f := range o.stack {
		if f.id == reentered {
			p = i
			break
		}
	}
	if p < 0 {
		// Emitting but not on the stack: its emission was cancelled by an
		// enclosing break and will be retried; treat like a fresh node.
		return noUnwind, nil
	}

	for j := p + 1; j < len(o.stack); j++ {
		if o.stack[j].weak && forwardable(o.g.Types, o.stack[j].id) {
			if o.appendFwd(o.stack[j].id) {
				o.breaks = append(o.breaks, Break{From: o.stack[j-1].id, To: o.stack[j].id})
			}
			return j - 1, nil
		}
	}
	if closingWeak && forwardable(o.g.Types, reentered) {
		if o.appendFwd(reentered) {
			o.breaks = append(o.breaks, Break{From: o.stack[len(o.stack)-1].id, To: reentered})
		}
		return noUnwind, nil
	}

	cycle := make([]types.TypeID, 0, len(o.stack)-p)
	for _, f := range o.stack[p:] {
		cycle = append(cycle, f.id)
	}
	return 0, &IllegalCycleError{Cycle: cycle, names: namesOf(o.g.Types, cycle)}
}

// appendFwd emits a forward declaration unless one was already emitted;
// it reports whether this call added one.
func (o *Orderer) appendFwd(id types.TypeID) bool {
	if o.fwdDone[id] {
		return false
	}
	o.fwdDone[id] = true
	o.out = append(o.out, Emission{ID: id, Fwd: true})
	return true
}

// forwardable reports whether C allows a forward declaration of the type.
func forwardable(in *types.Interner, id types.TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case types.KindStruct, types.KindUnion, types.KindEnum, types.KindFwd:
		return in.Name(id) != 0
	default:
		return false
	}
}

func namesOf(in *types.Interner, ids []types.TypeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = displayName(in, id)
	}
	return out
}

func displayName(in *types.Interner, id types.TypeID) string {
	if s := in.NameOf(id); s != "" {
		return s
	}
	return "<anon>"
}
