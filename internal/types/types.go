package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of C-like types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindInt
	KindPtr
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindFwd
	KindTypedef
	KindVolatile
	KindConst
	KindRestrict
	KindFuncProto
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindPtr:
		return "ptr"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindFwd:
		return "fwd"
	case KindTypedef:
		return "typedef"
	case KindVolatile:
		return "volatile"
	case KindConst:
		return "const"
	case KindRestrict:
		return "restrict"
	case KindFuncProto:
		return "func_proto"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ArrayUnknownLength marks arrays declared without a length, e.g. a trailing
// flexible member.
const ArrayUnknownLength = ^uint32(0)

// Type is a compact descriptor for any supported type. Composite, enum,
// typedef, fwd and func-proto details live in side tables addressed by
// Payload.
type Type struct {
	Kind    Kind
	Elem    TypeID // ptr/qualifier target, array element
	Count   uint32 // array length (ArrayUnknownLength when not declared)
	Bits    uint16 // integer width in bits
	Signed  bool   // integers only
	Payload uint32 // slot into the side table for the kind
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes an integer of the given bit width.
func MakeInt(bits uint16, signed bool) Type {
	return Type{Kind: KindInt, Bits: bits, Signed: signed}
}

// MakePtr describes a pointer to elem.
func MakePtr(elem TypeID) Type {
	return Type{Kind: KindPtr, Elem: elem}
}

// MakeArray describes an array of elem. Use ArrayUnknownLength for arrays
// declared without a length.
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeQualified wraps elem in a const/volatile/restrict qualifier node.
func MakeQualified(kind Kind, elem TypeID) Type {
	switch kind {
	case KindConst, KindVolatile, KindRestrict:
		return Type{Kind: kind, Elem: elem}
	default:
		return Type{Kind: KindInvalid}
	}
}

// IsQualifier reports whether k is a transparent type qualifier.
func (k Kind) IsQualifier() bool {
	return k == KindConst || k == KindVolatile || k == KindRestrict
}

// IsComposite reports whether k carries an ordered member list.
func (k Kind) IsComposite() bool {
	return k == KindStruct || k == KindUnion
}
