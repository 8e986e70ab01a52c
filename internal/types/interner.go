package types

import (
	"fmt"

	"fortio.org/safecast"

	"coregraph/internal/source"
)

// Interner owns every TypeNode of one compilation unit. Types reference each
// other by TypeID only, never by containment, so cyclic graphs (self-
// referential lists, mutually referential structs) are ordinary data.
// Once a declaration set is fully registered the interner is read-only and
// safe for concurrent use.
type Interner struct {
	// Strings holds all tag, member and parameter names of the unit.
	Strings *source.Interner

	types []Type
	index map[Type]TypeID

	composites []CompositeInfo
	enums      []EnumInfo
	typedefs   []TypedefInfo
	fwds       []FwdInfo
	protos     []FuncProtoInfo

	layoutAttrs map[TypeID]LayoutAttrs

	void TypeID
}

// NewInterner constructs an interner seeded with the void type.
func NewInterner(strings *source.Interner) *Interner {
	if strings == nil {
		strings = source.NewInterner()
	}
	in := &Interner{
		Strings: strings,
		index:   make(map[Type]TypeID, 64),
	}
	// Reserve slot 0 in every table so a zero Payload is never valid by accident.
	in.composites = append(in.composites, CompositeInfo{})
	in.enums = append(in.enums, EnumInfo{})
	in.typedefs = append(in.typedefs, TypedefInfo{})
	in.fwds = append(in.fwds, FwdInfo{})
	in.protos = append(in.protos, FuncProtoInfo{})
	in.internRaw(Type{Kind: KindInvalid}) // TypeID 0
	in.void = in.internRaw(Type{Kind: KindVoid})
	return in
}

// Void returns the TypeID of the void type.
func (in *Interner) Void() TypeID {
	return in.void
}

// Intern ensures the structural descriptor has a stable TypeID. Only
// non-nominal kinds (int, ptr, array, qualifiers) are deduplicated; nominal
// kinds must go through their Register functions.
func (in *Interner) Intern(t Type) TypeID {
	switch t.Kind {
	case KindInt, KindPtr, KindArray, KindConst, KindVolatile, KindRestrict, KindVoid:
	default:
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("types: TypeID overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Len counts registered types, including the reserved invalid slot.
func (in *Interner) Len() int {
	return len(in.types)
}

// Name returns the declared name of a nominal type, or NoStringID for
// anonymous and structural types.
func (in *Interner) Name(id TypeID) source.StringID {
	tt, ok := in.Lookup(id)
	if !ok {
		return source.NoStringID
	}
	switch tt.Kind {
	case KindStruct, KindUnion:
		if info := in.compositeInfo(id); info != nil {
			return info.Name
		}
	case KindEnum:
		if info, ok := in.EnumInfo(id); ok {
			return info.Name
		}
	case KindTypedef:
		if info := in.typedefInfo(id); info != nil {
			return info.Name
		}
	case KindFwd:
		if info := in.fwdInfo(id); info != nil {
			return info.Name
		}
	}
	return source.NoStringID
}

// NameOf is Name followed by a string lookup; anonymous types come back as "".
func (in *Interner) NameOf(id TypeID) string {
	s, _ := in.Strings.Lookup(in.Name(id))
	return s
}

// appendX helpers -------------------------------------------------------------

func (in *Interner) appendComposite(info CompositeInfo) uint32 {
	slot := mustSlot(len(in.composites))
	in.composites = append(in.composites, info)
	return slot
}

func (in *Interner) appendEnum(info EnumInfo) uint32 {
	slot := mustSlot(len(in.enums))
	in.enums = append(in.enums, info)
	return slot
}

func (in *Interner) appendTypedef(info TypedefInfo) uint32 {
	slot := mustSlot(len(in.typedefs))
	in.typedefs = append(in.typedefs, info)
	return slot
}

func (in *Interner) appendFwd(info FwdInfo) uint32 {
	slot := mustSlot(len(in.fwds))
	in.fwds = append(in.fwds, info)
	return slot
}

func (in *Interner) appendProto(info FuncProtoInfo) uint32 {
	slot := mustSlot(len(in.protos))
	in.protos = append(in.protos, info)
	return slot
}

func mustSlot(n int) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("types: side-table slot overflow: %w", err))
	}
	return slot
}
