package types

// LayoutAttrs describes layout-affecting attributes applied to a type
// declaration, e.g. __attribute__((packed)) or __attribute__((aligned(N))).
//
// Attribute validity is checked by the layout engine; registration accepts
// anything.
type LayoutAttrs struct {
	Packed        bool
	AlignOverride *int // nil when no aligned(N) is present
}

// FieldLayoutAttrs describes layout-affecting attributes applied to a single
// member.
type FieldLayoutAttrs struct {
	AlignOverride *int // nil when no aligned(N) is present
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// TypeLayoutAttrs returns the layout-affecting attributes recorded for the type.
func (in *Interner) TypeLayoutAttrs(id TypeID) (LayoutAttrs, bool) {
	if id == NoTypeID || in.layoutAttrs == nil {
		return LayoutAttrs{}, false
	}
	attrs, ok := in.layoutAttrs[id]
	return attrs, ok
}

// SetTypeLayoutAttrs stores layout-affecting attributes for the type.
func (in *Interner) SetTypeLayoutAttrs(id TypeID, attrs LayoutAttrs) {
	if id == NoTypeID {
		return
	}
	if !attrs.Packed && attrs.AlignOverride == nil {
		delete(in.layoutAttrs, id)
		return
	}
	if in.layoutAttrs == nil {
		in.layoutAttrs = make(map[TypeID]LayoutAttrs, 16)
	}
	attrs.AlignOverride = cloneIntPtr(attrs.AlignOverride)
	in.layoutAttrs[id] = attrs
}
