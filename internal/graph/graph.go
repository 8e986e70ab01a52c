package graph

import (
	"fortio.org/safecast"

	"coregraph/internal/source"
	"coregraph/internal/types"
)

// Graph is the classified dependency graph over one declaration set. It is
// immutable once built and safe for concurrent readers.
type Graph struct {
	Types *types.Interner

	// Decls lists the top-level declarations in their original input order.
	// Every determinism guarantee downstream is anchored to this order.
	Decls []types.TypeID

	edges map[types.TypeID][]Edge
}

// Edges returns the classified outgoing dependencies of a node, in member
// declaration order with first-occurrence dedup.
func (g *Graph) Edges(id types.TypeID) []Edge {
	return g.edges[id]
}

// AllEdges returns every edge of the declaration closure, grouped by Decls
// order.
func (g *Graph) AllEdges() []Edge {
	var out []Edge
	for _, id := range g.Decls {
		out = append(out, g.edges[id]...)
	}
	return out
}

// FindMemberPath resolves a member name in the flattened namespace of a
// struct or union: direct named members are consulted first, then each
// anonymous member is searched recursively in declaration order. The returned
// path holds one member index per descended level, so anonymous pass-throughs
// are visible to access-path construction even though they are invisible to
// source code.
//
// A name found through more than one sibling anonymous member is
// ErrAmbiguousMember; a name absent from the whole flattened namespace is
// ErrMemberNotFound.
func (g *Graph) FindMemberPath(composite types.TypeID, name source.StringID) ([]uint32, types.Member, error) {
	members := g.Types.Members(g.Types.Underlying(composite))
	if members == nil || name == source.NoStringID {
		return nil, types.Member{}, ErrMemberNotFound
	}
	return g.findInMembers(members, name)
}

func (g *Graph) findInMembers(members []types.Member, name source.StringID) ([]uint32, types.Member, error) {
	// Direct named members win over anything nested in anonymous siblings.
	for i, m := range members {
		if m.Name == name {
			return []uint32{memberIndex(i)}, m, nil
		}
	}

	var (
		found     []uint32
		foundMem  types.Member
		foundHits int
	)
	for i, m := range members {
		if !m.Anonymous() || m.Bitfield {
			continue
		}
		inner := g.Types.Members(g.Types.Underlying(m.Type))
		if inner == nil {
			continue
		}
		sub, sm, err := g.findInMembers(inner, name)
		switch err {
		case nil:
			foundHits++
			if foundHits == 1 {
				found = append([]uint32{memberIndex(i)}, sub...)
				foundMem = sm
			}
		case ErrMemberNotFound:
		default:
			return nil, types.Member{}, err
		}
	}
	switch foundHits {
	case 0:
		return nil, types.Member{}, ErrMemberNotFound
	case 1:
		return found, foundMem, nil
	default:
		return nil, types.Member{}, ErrAmbiguousMember
	}
}

func memberIndex(i int) uint32 {
	idx, err := safecast.Conv[uint32](i)
	if err != nil {
		panic("graph: member index overflow")
	}
	return idx
}
