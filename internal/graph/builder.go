package graph

import (
	"coregraph/internal/source"
	"coregraph/internal/types"
)

// Builder ingests a registered declaration set and produces the classified
// type graph. Forward references are bound to their eventual definitions
// before edge classification.
type Builder struct {
	Types *types.Interner
}

func NewBuilder(in *types.Interner) *Builder {
	return &Builder{Types: in}
}

// Build binds forward declarations, classifies every dependency edge in the
// closure of decls, and verifies that no type is embedded by value without a
// definition. decls is the input declaration order and is preserved verbatim.
func (b *Builder) Build(decls []types.TypeID) (*Graph, error) {
	g := &Graph{
		Types: b.Types,
		Decls: append([]types.TypeID(nil), decls...),
		edges: make(map[types.TypeID][]Edge, len(decls)),
	}

	b.bindForwardDecls()

	for _, id := range g.Decls {
		edges, err := b.classify(id)
		if err != nil {
			return nil, err
		}
		g.edges[id] = edges
	}
	return g, nil
}

// bindForwardDecls points every named Fwd node at the first full definition
// with a matching tag and composite kind. First definition wins, by
// registration order, which is declaration order.
func (b *Builder) bindForwardDecls() {
	type tagKey struct {
		name    source.StringID
		isUnion bool
	}
	defs := make(map[tagKey]types.TypeID)
	for id := types.TypeID(1); int(id) < b.Types.Len(); id++ {
		tt := b.Types.MustLookup(id)
		if !tt.Kind.IsComposite() {
			continue
		}
		name := b.Types.Name(id)
		if name == source.NoStringID {
			continue
		}
		key := tagKey{name: name, isUnion: tt.Kind == types.KindUnion}
		if _, dup := defs[key]; !dup {
			defs[key] = id
		}
	}
	for id := types.TypeID(1); int(id) < b.Types.Len(); id++ {
		info, ok := b.Types.FwdInfo(id)
		if !ok || info.Def != types.NoTypeID {
			continue
		}
		if def, ok := defs[tagKey{name: info.Name, isUnion: info.IsUnion}]; ok {
			b.Types.BindFwd(id, def)
		}
	}
}

// classify walks one declaration and emits its outgoing edges in member
// order. Qualifiers and typedefs are transparent; pointers weaken; arrays
// keep the enclosing strength; function prototypes weaken their return and
// parameter references.
func (b *Builder) classify(id types.TypeID) ([]Edge, error) {
	var edges []Edge
	// One edge per target; the first-seen kind wins, so a value embedding
	// before a pointer to the same type keeps the strong edge.
	seen := make(map[types.TypeID]struct{})
	add := func(e Edge) {
		if _, dup := seen[e.To]; dup {
			return
		}
		seen[e.To] = struct{}{}
		edges = append(edges, e)
	}

	var visit func(from, t types.TypeID, kind EdgeKind) error
	visit = func(from, t types.TypeID, kind EdgeKind) error {
		u := b.Types.Underlying(t)
		tt, ok := b.Types.Lookup(u)
		if !ok {
			return nil
		}
		switch tt.Kind {
		case types.KindPtr:
			return visit(from, tt.Elem, Weak)
		case types.KindArray:
			return visit(from, tt.Elem, kind)
		case types.KindFuncProto:
			info, _ := b.Types.FuncProtoInfo(u)
			if info == nil {
				return nil
			}
			if err := visit(from, info.Result, Weak); err != nil {
				return err
			}
			for _, p := range info.Params {
				if err := visit(from, p.Type, Weak); err != nil {
					return err
				}
			}
			return nil
		case types.KindStruct, types.KindUnion:
			// Anonymous composites are not independent declarations: their
			// dependencies belong to the enclosing type.
			if b.Types.Name(u) == source.NoStringID {
				for _, m := range b.Types.Members(u) {
					if err := visit(from, m.Type, kind); err != nil {
						return err
					}
				}
				return nil
			}
			add(Edge{From: from, To: u, Kind: kind})
			return nil
		case types.KindEnum:
			add(Edge{From: from, To: u, Kind: kind})
			return nil
		case types.KindFwd:
			// Underlying left it unbound: no definition exists anywhere.
			if kind == Strong {
				return &UnresolvedTypeError{
					Tag:      b.Types.NameOf(u),
					Referrer: b.Types.NameOf(from),
				}
			}
			add(Edge{From: from, To: u, Kind: Weak})
			return nil
		default:
			// Primitives carry no ordering obligations.
			return nil
		}
	}

	tt, ok := b.Types.Lookup(id)
	if !ok {
		return nil, nil
	}
	switch tt.Kind {
	case types.KindStruct, types.KindUnion:
		for _, m := range b.Types.Members(id) {
			if err := visit(id, m.Type, Strong); err != nil {
				return nil, err
			}
		}
	case types.KindTypedef:
		if info, ok := b.Types.TypedefInfo(id); ok {
			if err := visit(id, info.Target, Strong); err != nil {
				return nil, err
			}
		}
	case types.KindPtr, types.KindArray, types.KindFuncProto,
		types.KindConst, types.KindVolatile, types.KindRestrict:
		if err := visit(id, id, Strong); err != nil {
			return nil, err
		}
	}
	return edges, nil
}
