// Package reloc resolves field access paths against a target type graph the
// way CO-RE relocates BPF field accesses: a recorded access spec on the
// local definition of a type is re-expressed as named accessors, then
// re-applied to a structurally compatible target definition by member name,
// descending through anonymous members, and finally turned into a concrete
// byte offset on the target's layout.
package reloc

import (
	"strconv"
	"strings"

	"fortio.org/safecast"

	"coregraph/internal/graph"
	"coregraph/internal/types"
)

// AccessSpec is the raw spelling of an access path: member and array indices
// from the root, with the leading element indexing the root itself as an
// array (0 for plain pointer/value access).
type AccessSpec []uint32

// ParseSpec parses the colon-joined decimal form, e.g. "0:1:2:3".
func ParseSpec(s string) (AccessSpec, error) {
	if s == "" {
		return nil, &BadAccessError{Spec: s, Detail: "empty access spec"}
	}
	parts := strings.Split(s, ":")
	spec := make(AccessSpec, 0, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, &BadAccessError{Spec: s, Pos: i, Detail: "not a uint32 index"}
		}
		v, convErr := safecast.Conv[uint32](n)
		if convErr != nil {
			return nil, &BadAccessError{Spec: s, Pos: i, Detail: "index out of range"}
		}
		spec = append(spec, v)
	}
	return spec, nil
}

func (s AccessSpec) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ":")
}

// AccessorKind distinguishes the two step shapes of an access path.
type AccessorKind uint8

const (
	// AccessIndex indexes an array (the first step always is one, indexing
	// the root pointer as an array).
	AccessIndex AccessorKind = iota
	// AccessField selects a named member of a composite.
	AccessField
)

// Accessor is one named step of an access path. Field steps keep the
// composite and member index on the local side so that target matching can
// compare member kinds; Name is plain text because local and target graphs
// intern strings independently.
type Accessor struct {
	Kind  AccessorKind
	Type  types.TypeID // Field: the local composite; Index: the element type
	Index uint32
	Name  string // Field only
}

// Accessors re-expresses an integer access spec against the local graph as
// named accessors. Anonymous members are traversed silently: they have a
// member index in the spec but produce no accessor.
func Accessors(local *graph.Graph, root types.TypeID, spec AccessSpec) ([]Accessor, error) {
	if len(spec) == 0 {
		return nil, &BadAccessError{Spec: spec.String(), Detail: "empty access spec"}
	}
	in := local.Types
	id := in.Underlying(root)
	out := []Accessor{{Kind: AccessIndex, Type: id, Index: spec[0]}}

	for i := 1; i < len(spec); i++ {
		id = in.Underlying(id)
		tt, ok := in.Lookup(id)
		if !ok {
			return nil, &BadAccessError{Spec: spec.String(), Pos: i, Type: id, Detail: "unknown type"}
		}
		switch tt.Kind {
		case types.KindStruct, types.KindUnion:
			members := in.Members(id)
			if int(spec[i]) >= len(members) {
				return nil, &BadAccessError{Spec: spec.String(), Pos: i, Type: id, Detail: "member index out of range"}
			}
			m := members[spec[i]]
			next := in.Underlying(m.Type)
			if m.Name != 0 {
				out = append(out, Accessor{
					Kind:  AccessField,
					Type:  id,
					Index: spec[i],
					Name:  in.Strings.MustLookup(m.Name),
				})
			}
			id = next
		case types.KindArray:
			id = in.Underlying(tt.Elem)
			out = append(out, Accessor{Kind: AccessIndex, Type: id, Index: spec[i]})
		default:
			return nil, &BadAccessError{
				Spec: spec.String(), Pos: i, Type: id,
				Detail: "spec step must land on a struct, union or array",
			}
		}
	}
	return out, nil
}
