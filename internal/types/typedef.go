package types

import (
	"coregraph/internal/source"
)

// TypedefInfo stores metadata for a typedef. Target may refer to any type,
// including another typedef.
type TypedefInfo struct {
	Name   source.StringID
	Target TypeID
}

// RegisterTypedef allocates a typedef slot and returns its TypeID. The target
// may be set later for typedefs of not-yet-declared types.
func (in *Interner) RegisterTypedef(name source.StringID, target TypeID) TypeID {
	slot := in.appendTypedef(TypedefInfo{Name: name, Target: target})
	return in.internRaw(Type{Kind: KindTypedef, Payload: slot})
}

// SetTypedefTarget binds the aliased type for the provided typedef TypeID.
func (in *Interner) SetTypedefTarget(id, target TypeID) {
	info := in.typedefInfo(id)
	if info == nil {
		return
	}
	info.Target = target
}

// TypedefInfo returns metadata for a typedef TypeID.
func (in *Interner) TypedefInfo(id TypeID) (*TypedefInfo, bool) {
	info := in.typedefInfo(id)
	if info == nil {
		return nil, false
	}
	return info, true
}

func (in *Interner) typedefInfo(id TypeID) *TypedefInfo {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTypedef {
		return nil
	}
	if int(tt.Payload) >= len(in.typedefs) {
		return nil
	}
	return &in.typedefs[tt.Payload]
}

// FwdInfo stores metadata for a forward declaration of a struct or union
// tag. Def is bound by the graph builder once the full definition is seen;
// it stays NoTypeID for tags that are only ever forward-declared.
type FwdInfo struct {
	Name    source.StringID
	IsUnion bool
	Def     TypeID
}

// RegisterFwd allocates a forward-declaration slot and returns its TypeID.
func (in *Interner) RegisterFwd(name source.StringID, isUnion bool) TypeID {
	slot := in.appendFwd(FwdInfo{Name: name, IsUnion: isUnion})
	return in.internRaw(Type{Kind: KindFwd, Payload: slot})
}

// BindFwd records the full definition for a forward declaration.
func (in *Interner) BindFwd(id, def TypeID) {
	info := in.fwdInfo(id)
	if info == nil {
		return
	}
	info.Def = def
}

// FwdInfo returns metadata for a forward-declaration TypeID.
func (in *Interner) FwdInfo(id TypeID) (*FwdInfo, bool) {
	info := in.fwdInfo(id)
	if info == nil {
		return nil, false
	}
	return info, true
}

func (in *Interner) fwdInfo(id TypeID) *FwdInfo {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFwd {
		return nil
	}
	if int(tt.Payload) >= len(in.fwds) {
		return nil
	}
	return &in.fwds[tt.Payload]
}
