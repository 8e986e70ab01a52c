package types

import (
	"coregraph/internal/source"
)

// Member describes a single member of a struct or union, in declaration
// order. An empty Name marks an anonymous member: either an unnamed nested
// struct/union, or (when Bitfield is set) an anonymous bitfield that
// participates in storage-unit layout only.
type Member struct {
	Name     source.StringID
	Type     TypeID
	Bitfield bool  // member is declared with a ':width' suffix
	BitWidth uint8 // bitfield width; 0 with Bitfield set means a zero-width separator
	Attrs    FieldLayoutAttrs
}

// Anonymous reports whether the member has no name of its own.
func (m Member) Anonymous() bool {
	return m.Name == source.NoStringID
}

// CompositeInfo stores metadata shared by struct and union types.
type CompositeInfo struct {
	Name    source.StringID // NoStringID for anonymous composites
	Members []Member
}

// RegisterStruct allocates a struct type slot and returns its TypeID.
// Members are attached later via SetMembers so self-referential and mutually
// referential declarations can be expressed.
func (in *Interner) RegisterStruct(name source.StringID) TypeID {
	slot := in.appendComposite(CompositeInfo{Name: name})
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// RegisterUnion allocates a union type slot and returns its TypeID.
func (in *Interner) RegisterUnion(name source.StringID) TypeID {
	slot := in.appendComposite(CompositeInfo{Name: name})
	return in.internRaw(Type{Kind: KindUnion, Payload: slot})
}

// SetMembers stores the ordered member list for a struct or union.
func (in *Interner) SetMembers(id TypeID, members []Member) {
	info := in.compositeInfo(id)
	if info == nil {
		return
	}
	info.Members = append([]Member(nil), members...)
}

// CompositeInfo returns metadata for a struct or union TypeID.
func (in *Interner) CompositeInfo(id TypeID) (*CompositeInfo, bool) {
	info := in.compositeInfo(id)
	if info == nil {
		return nil, false
	}
	return info, true
}

// Members returns the ordered member list for a struct or union, or nil.
func (in *Interner) Members(id TypeID) []Member {
	info := in.compositeInfo(id)
	if info == nil {
		return nil
	}
	return info.Members
}

func (in *Interner) compositeInfo(id TypeID) *CompositeInfo {
	tt, ok := in.Lookup(id)
	if !ok || !tt.Kind.IsComposite() {
		return nil
	}
	if int(tt.Payload) >= len(in.composites) {
		return nil
	}
	return &in.composites[tt.Payload]
}
