// Package layout computes sizes, alignments and member placement for C types
// on a concrete Target. Results are cached per type; bit-fields are packed
// into storage units following the SysV rules, and packed/aligned attributes
// are honored with conflicts reported as errors rather than silently shifted.
package layout

import (
	"coregraph/internal/types"
)

// FieldLayout is the placement of one composite member. Entries are parallel
// to types.Interner.Members for the composite.
type FieldLayout struct {
	// ByteOffset is the field's offset; for bit-fields it is the start of
	// the storage unit the bits live in.
	ByteOffset int
	// Size is the field size in bytes; for bit-fields, the storage unit size.
	Size  int
	Align int
	// BitOffset and BitWidth are set for bit-fields only: the bit position
	// within the storage unit and the declared width. BitWidth 0 means the
	// member is a plain field (or a zero-width separator).
	BitOffset int
	BitWidth  int
}

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int
	Align int

	// Composite-only:
	Fields []FieldLayout
	// Flexible is set when the last member is an unsized array.
	Flexible bool
}

// Engine computes memory layout for types.
type Engine struct {
	Target Target
	Types  *types.Interner

	cache *cache
}

// New creates a new Engine for the specified target.
func New(target Target, typesIn *types.Interner) *Engine {
	return &Engine{
		Target: target,
		Types:  typesIn,
		cache:  newCache(),
	}
}

// layoutState tracks the in-progress DFS so that value-embedding cycles are
// reported instead of recursing forever.
type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{index: make(map[types.TypeID]int, 32)}
}

// LayoutOf computes and caches the layout of a type.
func (e *Engine) LayoutOf(t types.TypeID) (TypeLayout, error) {
	l, err := e.layoutOf(t, newLayoutState())
	if err != nil {
		return l, err
	}
	// Returning err directly would wrap a typed nil in the interface.
	return l, nil
}

func (e *Engine) layoutOf(t types.TypeID, state *layoutState) (TypeLayout, *LayoutError) {
	canon := e.Types.Underlying(t)
	if cached, ok := e.cache.get(canon); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[canon]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, canon)
		err := &LayoutError{Kind: LayoutErrCircular, Type: canon, Cycle: cycle}
		e.cache.put(canon, cacheEntry{Layout: TypeLayout{Align: 1}, Err: err})
		return TypeLayout{Align: 1}, err
	}

	state.index[canon] = len(state.stack)
	state.stack = append(state.stack, canon)
	l, err := e.computeLayout(canon, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, canon)

	e.cache.put(canon, cacheEntry{Layout: l, Err: err})
	return l, err
}

// SizeOf returns the size of a type in bytes.
func (e *Engine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *Engine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

// FieldOf returns the placement of one member of a composite.
func (e *Engine) FieldOf(composite types.TypeID, memberIdx int) (FieldLayout, error) {
	l, err := e.LayoutOf(composite)
	if err != nil {
		return FieldLayout{}, err
	}
	if memberIdx < 0 || memberIdx >= len(l.Fields) {
		return FieldLayout{}, &LayoutError{
			Kind:   LayoutErrIncomplete,
			Type:   e.Types.Underlying(composite),
			Detail: "member index out of range",
		}
	}
	return l.Fields[memberIdx], nil
}
