package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Graph construction.
	GraphInfo           Code = 1000
	GraphUnresolvedType Code = 1001
	GraphDuplicateTag   Code = 1002

	// Ordering.
	OrderInfo         Code = 2000
	OrderIllegalCycle Code = 2001
	OrderCycleBreak   Code = 2002 // informational: a weak edge was broken with a fwd decl

	// Layout.
	LayoutInfo              Code = 3000
	LayoutIncompleteType    Code = 3001
	LayoutCircular          Code = 3002
	LayoutAttributeConflict Code = 3003

	// Relocation resolution.
	RelocInfo            Code = 4000
	RelocFieldNotFound   Code = 4001
	RelocAmbiguousField  Code = 4002
	RelocBadAccessor     Code = 4003
	RelocNoCandidate     Code = 4004
	RelocAmbiguousOffset Code = 4005
)

func (c Code) String() string {
	return fmt.Sprintf("CG%04d", uint16(c))
}
