package types

import (
	"coregraph/internal/source"
)

// EnumValue describes one enumerator.
type EnumValue struct {
	Name  source.StringID
	Value int64
}

// EnumInfo stores metadata for an enum type. Size is the byte size of the
// underlying integer representation.
type EnumInfo struct {
	Name   source.StringID
	Size   int
	Values []EnumValue
}

// RegisterEnum allocates an enum type slot and returns its TypeID.
func (in *Interner) RegisterEnum(name source.StringID, size int, values []EnumValue) TypeID {
	if size <= 0 {
		size = 4
	}
	slot := in.appendEnum(EnumInfo{
		Name:   name,
		Size:   size,
		Values: append([]EnumValue(nil), values...),
	})
	return in.internRaw(Type{Kind: KindEnum, Payload: slot})
}

// EnumInfo returns metadata for an enum TypeID.
func (in *Interner) EnumInfo(id TypeID) (*EnumInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindEnum {
		return nil, false
	}
	if int(tt.Payload) >= len(in.enums) {
		return nil, false
	}
	return &in.enums[tt.Payload], true
}
