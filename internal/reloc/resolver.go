package reloc

import (
	"sync"

	"fortio.org/safecast"

	"coregraph/internal/graph"
	"coregraph/internal/layout"
	"coregraph/internal/types"
)

func memberIndex(i int) uint32 {
	idx, err := safecast.Conv[uint32](i)
	if err != nil {
		panic("reloc: member index overflow")
	}
	return idx
}

// View bundles one side of a relocation: a classified type graph and the
// layout engine computing offsets on it.
type View struct {
	Graph  *graph.Graph
	Layout *layout.Engine
}

// Relocation is a resolved access: the matched root type, the concrete
// member/array spec on it, and the byte placement of the accessed field.
// For bit-field leaves Size describes the storage unit to load, BitOffset
// the bit position within the addressed byte and BitWidth the field width;
// plain fields have BitWidth 0.
type Relocation struct {
	Root       types.TypeID
	Spec       AccessSpec
	ByteOffset int
	Size       int
	BitOffset  int
	BitWidth   int
}

// Resolver re-applies local access paths to a target graph. The zero Trace
// is silent; a non-nil Trace receives candidate matching details and must be
// safe for concurrent use when ResolveAll runs with multiple jobs.
type Resolver struct {
	Local  *View
	Target *View
	Trace  func(format string, args ...any)

	mu        sync.Mutex
	nameIndex map[string][]types.TypeID
	matched   map[types.TypeID][]types.TypeID
}

func NewResolver(local, target *View) *Resolver {
	return &Resolver{
		Local:   local,
		Target:  target,
		matched: make(map[types.TypeID][]types.TypeID),
	}
}

func (r *Resolver) tracef(format string, args ...any) {
	if r.Trace != nil {
		r.Trace(format, args...)
	}
}

// Resolve applies named accessors to one target candidate. Field steps are
// matched by name with anonymous descent; array steps keep their literal
// index. A missing field is a *FieldNotFoundError, a field reachable through
// more than one anonymous sibling an *AmbiguousFieldError; both leave other
// candidates worth trying.
func (r *Resolver) Resolve(targetRoot types.TypeID, accessors []Accessor) (Relocation, error) {
	if len(accessors) == 0 || accessors[0].Kind != AccessIndex {
		return Relocation{}, &BadAccessError{Detail: "access path must start with an array step"}
	}
	tin := r.Target.Graph.Types
	tid := tin.Underlying(targetRoot)
	spec := AccessSpec{accessors[0].Index}

	for i := 1; i < len(accessors); i++ {
		a := accessors[i]
		tid = tin.Underlying(tid)
		tt, ok := tin.Lookup(tid)
		if !ok {
			return Relocation{}, &BadAccessError{Pos: i, Type: tid, Detail: "unknown target type"}
		}
		switch a.Kind {
		case AccessIndex:
			if tt.Kind != types.KindArray {
				return Relocation{}, &BadAccessError{Pos: i, Type: tid, Detail: "target is not an array"}
			}
			spec = append(spec, a.Index)
			tid = tin.Underlying(tt.Elem)
		case AccessField:
			if !tt.Kind.IsComposite() {
				return Relocation{}, &BadAccessError{Pos: i, Type: tid, Detail: "target is not a composite"}
			}
			localM, err := r.localMember(a)
			if err != nil {
				return Relocation{}, err
			}
			path, next, found, err := r.findMember(tid, localM, a.Name)
			if err != nil {
				return Relocation{}, err
			}
			if !found {
				return Relocation{}, &FieldNotFoundError{Type: tid, Name: a.Name}
			}
			spec = append(spec, path...)
			tid = next
		}
	}
	return r.Target.relocationOf(targetRoot, spec)
}

// ResolveNamed walks the target directly from source-form steps, for callers
// that have no local graph to record a spec against. Kind compatibility is
// not checked (there is no local member to compare with).
func (r *Resolver) ResolveNamed(targetRoot types.TypeID, steps []Step) (Relocation, error) {
	tin := r.Target.Graph.Types
	tid := tin.Underlying(targetRoot)
	spec := AccessSpec{0}
	start := 0
	if len(steps) > 0 && steps[0].IsIndex {
		spec[0] = steps[0].Index
		start = 1
	}

	for i := start; i < len(steps); i++ {
		s := steps[i]
		tid = tin.Underlying(tid)
		tt, ok := tin.Lookup(tid)
		if !ok {
			return Relocation{}, &BadAccessError{Pos: i, Type: tid, Detail: "unknown target type"}
		}
		if s.IsIndex {
			if tt.Kind != types.KindArray {
				return Relocation{}, &BadAccessError{Pos: i, Type: tid, Detail: "target is not an array"}
			}
			spec = append(spec, s.Index)
			tid = tin.Underlying(tt.Elem)
			continue
		}
		if !tt.Kind.IsComposite() {
			return Relocation{}, &BadAccessError{Pos: i, Type: tid, Detail: "target is not a composite"}
		}
		path, next, found, err := r.findMember(tid, nil, s.Name)
		if err != nil {
			return Relocation{}, err
		}
		if !found {
			return Relocation{}, &FieldNotFoundError{Type: tid, Name: s.Name}
		}
		spec = append(spec, path...)
		tid = next
	}
	return r.Target.relocationOf(targetRoot, spec)
}

// Step is one source-form access step for ResolveNamed: a field name or an
// array index.
type Step struct {
	Name    string
	Index   uint32
	IsIndex bool
}

func (r *Resolver) localMember(a Accessor) (*types.Member, error) {
	members := r.Local.Graph.Types.Members(a.Type)
	if int(a.Index) >= len(members) {
		return nil, &BadAccessError{Type: a.Type, Detail: "local member index out of range"}
	}
	return &members[a.Index], nil
}

// findMember locates name in the target composite: direct named members
// first, then a recursive search through anonymous members in declaration
// order. The returned path holds one member index per level descended.
// localM, when non-nil, is the local member whose kind the match must be
// compatible with.
func (r *Resolver) findMember(tc types.TypeID, localM *types.Member, name string) ([]uint32, types.TypeID, bool, error) {
	tin := r.Target.Graph.Types
	members := tin.Members(tc)

	for i, m := range members {
		if m.Name == 0 {
			continue
		}
		if tin.Strings.MustLookup(m.Name) != name {
			continue
		}
		if localM != nil && !r.kindsCompatible(localM.Type, m.Type) {
			return nil, 0, false, &FieldNotFoundError{
				Type: tc, Name: name, Detail: "member kinds are incompatible",
			}
		}
		return []uint32{memberIndex(i)}, tin.Underlying(m.Type), true, nil
	}

	var (
		path  []uint32
		next  types.TypeID
		count int
	)
	for i, m := range members {
		if m.Name != 0 || m.Bitfield {
			continue
		}
		mc := tin.SkipQualifiers(m.Type)
		if tt, ok := tin.Lookup(mc); !ok || !tt.Kind.IsComposite() {
			continue
		}
		sub, subNext, found, err := r.findMember(mc, localM, name)
		if err != nil {
			return nil, 0, false, err
		}
		if !found {
			continue
		}
		count++
		if count > 1 {
			return nil, 0, false, &AmbiguousFieldError{Type: tc, Name: name}
		}
		path = append([]uint32{memberIndex(i)}, sub...)
		next = subNext
	}
	if count == 1 {
		return path, next, true, nil
	}
	return nil, 0, false, nil
}

// kindsCompatible implements the leaf compatibility rule: identical kinds
// match, and struct/union may stand in for each other.
func (r *Resolver) kindsCompatible(localT, targT types.TypeID) bool {
	lin := r.Local.Graph.Types
	tin := r.Target.Graph.Types
	lk := lin.MustLookup(lin.Underlying(localT)).Kind
	tk := tin.MustLookup(tin.Underlying(targT)).Kind
	if lk == tk {
		return true
	}
	return lk.IsComposite() && tk.IsComposite()
}

// relocationOf turns a concrete spec on this view into byte placement.
func (v *View) relocationOf(root types.TypeID, spec AccessSpec) (Relocation, error) {
	in := v.Graph.Types
	id := in.Underlying(root)
	rootSize, err := v.Layout.SizeOf(id)
	if err != nil {
		return Relocation{}, err
	}
	off := int(spec[0]) * rootSize

	var leaf layout.FieldLayout
	leafBitfield := false
	for i := 1; i < len(spec); i++ {
		id = in.Underlying(id)
		tt, ok := in.Lookup(id)
		if !ok {
			return Relocation{}, &BadAccessError{Spec: spec.String(), Pos: i, Type: id, Detail: "unknown type"}
		}
		switch tt.Kind {
		case types.KindStruct, types.KindUnion:
			members := in.Members(id)
			if int(spec[i]) >= len(members) {
				return Relocation{}, &BadAccessError{Spec: spec.String(), Pos: i, Type: id, Detail: "member index out of range"}
			}
			fl, ferr := v.Layout.FieldOf(id, int(spec[i]))
			if ferr != nil {
				return Relocation{}, ferr
			}
			m := members[spec[i]]
			off += (fl.ByteOffset*8 + fl.BitOffset) / 8
			leaf = fl
			leafBitfield = m.Bitfield && m.BitWidth > 0
			id = in.Underlying(m.Type)
		case types.KindArray:
			elemSize, serr := v.Layout.SizeOf(tt.Elem)
			if serr != nil {
				return Relocation{}, serr
			}
			off += int(spec[i]) * elemSize
			leafBitfield = false
			id = in.Underlying(tt.Elem)
		default:
			return Relocation{}, &BadAccessError{
				Spec: spec.String(), Pos: i, Type: id,
				Detail: "spec step must land on a struct, union or array",
			}
		}
	}

	rel := Relocation{Root: in.Underlying(root), Spec: spec, ByteOffset: off}
	if leafBitfield {
		rel.Size = leaf.Size
		rel.BitOffset = (leaf.ByteOffset*8 + leaf.BitOffset) % 8
		rel.BitWidth = leaf.BitWidth
		return rel, nil
	}
	sz, err := v.Layout.SizeOf(id)
	if err != nil {
		return Relocation{}, err
	}
	rel.Size = sz
	return rel, nil
}
