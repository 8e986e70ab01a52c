package layout

import (
	"fmt"
	"strings"

	"coregraph/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrIncomplete indicates a type with no defined size: an unbound
	// forward declaration, void, a function type, or an unsized array in a
	// position that requires a size.
	LayoutErrIncomplete LayoutErrorKind = iota + 1
	// LayoutErrCircular indicates a value-embedding cycle with no fixed size.
	LayoutErrCircular
	// LayoutErrAttributeConflict indicates packed/aligned attributes that
	// contradict each other or the member's natural alignment.
	LayoutErrAttributeConflict
	// LayoutErrBadBitfield indicates a bit-field wider than its underlying
	// type or declared on a non-integer type.
	LayoutErrBadBitfield
	LayoutErrArrayLength
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind   LayoutErrorKind
	Type   types.TypeID
	Cycle  []types.TypeID // for LayoutErrCircular
	Detail string
	Err    error // for LayoutErrArrayLength
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrIncomplete:
		if e.Detail != "" {
			return fmt.Sprintf("incomplete type (type#%d): %s", e.Type, e.Detail)
		}
		return fmt.Sprintf("incomplete type has no layout (type#%d)", e.Type)
	case LayoutErrCircular:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrAttributeConflict:
		return fmt.Sprintf("conflicting layout attributes (type#%d): %s", e.Type, e.Detail)
	case LayoutErrBadBitfield:
		return fmt.Sprintf("invalid bit-field (type#%d): %s", e.Type, e.Detail)
	case LayoutErrArrayLength:
		if e.Err != nil {
			return fmt.Sprintf("array length overflow (type#%d): %v", e.Type, e.Err)
		}
		return fmt.Sprintf("array length overflow (type#%d)", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
