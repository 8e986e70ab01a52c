package types

// SkipQualifiers follows const/volatile/restrict wrappers to the qualified
// type. Typedefs and forward declarations are left alone.
func (in *Interner) SkipQualifiers(id TypeID) TypeID {
	for {
		tt, ok := in.Lookup(id)
		if !ok || !tt.Kind.IsQualifier() {
			return id
		}
		id = tt.Elem
	}
}

// Underlying follows qualifiers, typedefs and bound forward declarations to
// the defining type. Typedef transparency for edge classification, layout and
// structural matching all route through here. An unbound forward declaration
// is returned as-is; the caller decides whether incompleteness is an error.
func (in *Interner) Underlying(id TypeID) TypeID {
	seen := make(map[TypeID]struct{}, 4)
	for {
		if _, ok := seen[id]; ok {
			return id
		}
		seen[id] = struct{}{}
		tt, ok := in.Lookup(id)
		if !ok {
			return id
		}
		switch tt.Kind {
		case KindConst, KindVolatile, KindRestrict:
			id = tt.Elem
		case KindTypedef:
			info := in.typedefInfo(id)
			if info == nil || info.Target == NoTypeID {
				return id
			}
			id = info.Target
		case KindFwd:
			info := in.fwdInfo(id)
			if info == nil || info.Def == NoTypeID {
				return id
			}
			id = info.Def
		default:
			return id
		}
	}
}
