package layout

import (
	"fortio.org/safecast"

	"coregraph/internal/types"
)

func (e *Engine) computeLayout(id types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	tt, ok := e.Types.Lookup(id)
	if !ok {
		return TypeLayout{Align: 1}, &LayoutError{Kind: LayoutErrIncomplete, Type: id, Detail: "unknown type"}
	}

	switch tt.Kind {
	case types.KindInt:
		return scalarLayoutBytes(int(tt.Bits) / 8), nil

	case types.KindPtr:
		return e.ptrLayout(), nil

	case types.KindEnum:
		info, ok := e.Types.EnumInfo(id)
		if !ok || info == nil {
			return scalarLayoutBytes(4), nil
		}
		return scalarLayoutBytes(info.Size), nil

	case types.KindArray:
		if tt.Count == types.ArrayUnknownLength {
			return TypeLayout{Align: 1}, &LayoutError{
				Kind: LayoutErrIncomplete, Type: id, Detail: "array has no length",
			}
		}
		return e.arrayLayout(id, tt.Elem, tt.Count, state)

	case types.KindStruct:
		return e.compositeLayout(id, false, state)

	case types.KindUnion:
		return e.compositeLayout(id, true, state)

	case types.KindFwd:
		// Underlying resolves bound fwds; reaching one here means the tag
		// was never defined.
		return TypeLayout{Align: 1}, &LayoutError{
			Kind: LayoutErrIncomplete, Type: id,
			Detail: "tag " + quoteName(e.Types, id) + " is declared but never defined",
		}

	case types.KindFuncProto:
		return TypeLayout{Align: 1}, &LayoutError{
			Kind: LayoutErrIncomplete, Type: id, Detail: "function types have no size",
		}

	default: // void, invalid
		return TypeLayout{Align: 1}, &LayoutError{
			Kind: LayoutErrIncomplete, Type: id, Detail: "type has no object representation",
		}
	}
}

func (e *Engine) ptrLayout() TypeLayout {
	ptrSize := e.Target.PtrSize
	ptrAlign := e.Target.PtrAlign
	if ptrSize <= 0 {
		ptrSize = 8
	}
	if ptrAlign <= 0 {
		ptrAlign = ptrSize
	}
	return TypeLayout{Size: ptrSize, Align: ptrAlign}
}

func scalarLayoutBytes(size int) TypeLayout {
	if size <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	return TypeLayout{Size: size, Align: size}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func (e *Engine) arrayLayout(id, elem types.TypeID, length uint32, state *layoutState) (TypeLayout, *LayoutError) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return TypeLayout{Align: 1}, err
	}
	align := maxInt(el.Align, 1)
	stride := roundUp(el.Size, align)
	total, convErr := safecast.Conv[int](uint64(stride) * uint64(length))
	if convErr != nil {
		return TypeLayout{Align: 1}, &LayoutError{Kind: LayoutErrArrayLength, Type: id, Err: convErr}
	}
	return TypeLayout{Size: total, Align: align}, nil
}

// compositeLayout places the members of a struct or union. Struct placement
// runs a bit cursor: plain fields round it up to their alignment, bit-fields
// pack back to back but may not straddle a boundary of their own storage
// unit. Union members all start at offset zero.
func (e *Engine) compositeLayout(id types.TypeID, isUnion bool, state *layoutState) (TypeLayout, *LayoutError) {
	attrs, _ := e.Types.TypeLayoutAttrs(id)
	if attrs.Packed && attrs.AlignOverride != nil {
		return TypeLayout{Align: 1}, &LayoutError{
			Kind: LayoutErrAttributeConflict, Type: id,
			Detail: "packed conflicts with an aligned attribute",
		}
	}
	if attrs.AlignOverride != nil && !isPowerOfTwo(*attrs.AlignOverride) {
		return TypeLayout{Align: 1}, &LayoutError{
			Kind: LayoutErrAttributeConflict, Type: id,
			Detail: "aligned attribute is not a power of two",
		}
	}

	members := e.Types.Members(id)
	fields := make([]FieldLayout, len(members))

	bitCursor := 0
	maxSize := 0 // union only
	align := 1
	flexible := false

	for i, m := range members {
		if flexible {
			return TypeLayout{Align: 1}, &LayoutError{
				Kind: LayoutErrIncomplete, Type: id,
				Detail: "flexible array member is not the last member",
			}
		}

		if m.Bitfield {
			fl, bferr := e.placeBitfield(id, m, attrs.Packed, isUnion, &bitCursor, state)
			if bferr != nil {
				return TypeLayout{Align: 1}, bferr
			}
			fields[i] = fl
			// Unnamed bit-fields do not affect the aggregate's alignment.
			if m.Name != 0 {
				align = maxInt(align, fl.Align)
			}
			if isUnion {
				maxSize = maxInt(maxSize, fl.Size)
				bitCursor = 0
			}
			continue
		}

		mt := e.Types.Underlying(m.Type)
		mtt, ok := e.Types.Lookup(mt)
		if ok && mtt.Kind == types.KindArray && mtt.Count == types.ArrayUnknownLength {
			if isUnion {
				return TypeLayout{Align: 1}, &LayoutError{
					Kind: LayoutErrIncomplete, Type: id,
					Detail: "flexible array member in a union",
				}
			}
			// Flexible trailing array: contributes alignment, no size.
			el, err := e.layoutOf(mtt.Elem, state)
			if err != nil {
				return TypeLayout{Align: 1}, err
			}
			a, aerr := e.memberAlign(id, m, el.Align, attrs.Packed)
			if aerr != nil {
				return TypeLayout{Align: 1}, aerr
			}
			bitCursor = roundUp(bitCursor, a*8)
			fields[i] = FieldLayout{ByteOffset: bitCursor / 8, Size: 0, Align: a}
			align = maxInt(align, a)
			flexible = true
			continue
		}

		ml, err := e.layoutOf(m.Type, state)
		if err != nil {
			return TypeLayout{Align: 1}, err
		}
		a, aerr := e.memberAlign(id, m, ml.Align, attrs.Packed)
		if aerr != nil {
			return TypeLayout{Align: 1}, aerr
		}
		if isUnion {
			fields[i] = FieldLayout{ByteOffset: 0, Size: ml.Size, Align: a}
			maxSize = maxInt(maxSize, ml.Size)
			align = maxInt(align, a)
			continue
		}
		bitCursor = roundUp(bitCursor, a*8)
		fields[i] = FieldLayout{ByteOffset: bitCursor / 8, Size: ml.Size, Align: a}
		bitCursor += ml.Size * 8
		align = maxInt(align, a)
	}

	if attrs.AlignOverride != nil {
		align = maxInt(align, *attrs.AlignOverride)
	}

	size := maxSize
	if !isUnion {
		size = roundUp(bitCursor, align*8) / 8
	} else {
		size = roundUp(size, align)
	}
	return TypeLayout{Size: size, Align: align, Fields: fields, Flexible: flexible}, nil
}

// placeBitfield advances the bit cursor for one bit-field member and returns
// its placement. Zero-width members close the current storage unit without
// occupying space.
func (e *Engine) placeBitfield(id types.TypeID, m types.Member, packed, isUnion bool, bitCursor *int, state *layoutState) (FieldLayout, *LayoutError) {
	ut := e.Types.Underlying(m.Type)
	utt, ok := e.Types.Lookup(ut)
	if !ok || (utt.Kind != types.KindInt && utt.Kind != types.KindEnum) {
		return FieldLayout{}, &LayoutError{
			Kind: LayoutErrBadBitfield, Type: id,
			Detail: "bit-field on a non-integer member",
		}
	}
	ul, err := e.layoutOf(ut, state)
	if err != nil {
		return FieldLayout{}, err
	}
	unitBytes := ul.Size
	unitBits := unitBytes * 8
	width := int(m.BitWidth)

	if width == 0 {
		// Zero-width separator: the next bit-field starts a fresh unit.
		*bitCursor = roundUp(*bitCursor, unitBits)
		return FieldLayout{ByteOffset: *bitCursor / 8, Align: 1}, nil
	}
	if width > unitBits {
		return FieldLayout{}, &LayoutError{
			Kind: LayoutErrBadBitfield, Type: id,
			Detail: "bit-field wider than its type",
		}
	}

	if isUnion {
		return FieldLayout{
			ByteOffset: 0,
			Size:       unitBytes,
			Align:      ul.Align,
			BitOffset:  0,
			BitWidth:   width,
		}, nil
	}

	if packed {
		// Packed bit-fields take the next free bit with no unit boundary;
		// the storage unit starts at the containing byte.
		at := *bitCursor
		*bitCursor += width
		return FieldLayout{
			ByteOffset: at / 8,
			Size:       unitBytes,
			Align:      1,
			BitOffset:  at % 8,
			BitWidth:   width,
		}, nil
	}

	if (*bitCursor)%unitBits+width > unitBits {
		*bitCursor = roundUp(*bitCursor, unitBits)
	}
	at := *bitCursor
	windowStart := at - at%unitBits
	*bitCursor += width
	return FieldLayout{
		ByteOffset: windowStart / 8,
		Size:       unitBytes,
		Align:      ul.Align,
		BitOffset:  at - windowStart,
		BitWidth:   width,
	}, nil
}

// memberAlign resolves the effective alignment of one member. An aligned
// attribute below the natural alignment is only legal together with packed.
func (e *Engine) memberAlign(id types.TypeID, m types.Member, natural int, packed bool) (int, *LayoutError) {
	a := maxInt(natural, 1)
	if packed {
		a = 1
	}
	if m.Attrs.AlignOverride == nil {
		return a, nil
	}
	o := *m.Attrs.AlignOverride
	if !isPowerOfTwo(o) {
		return 0, &LayoutError{
			Kind: LayoutErrAttributeConflict, Type: id,
			Detail: "member aligned attribute is not a power of two",
		}
	}
	if o < natural && !packed {
		return 0, &LayoutError{
			Kind: LayoutErrAttributeConflict, Type: id,
			Detail: "aligned attribute below natural alignment without packed",
		}
	}
	return o, nil
}

func quoteName(in *types.Interner, id types.TypeID) string {
	if s := in.NameOf(id); s != "" {
		return "\"" + s + "\""
	}
	return "<anon>"
}
