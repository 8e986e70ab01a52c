package graph

import (
	"fmt"

	"coregraph/internal/types"
)

// EdgeKind classifies a dependency between two type nodes.
type EdgeKind uint8

const (
	// Strong means the target must be fully defined before the source can be
	// completed: value embedding, directly or through a fixed-size array.
	Strong EdgeKind = iota
	// Weak means a forward declaration of the target suffices: pointer
	// members and function-pointer parameter/return references.
	Weak
)

func (k EdgeKind) String() string {
	switch k {
	case Strong:
		return "strong"
	case Weak:
		return "weak"
	default:
		return fmt.Sprintf("EdgeKind(%d)", k)
	}
}

// Edge is one classified dependency in the type graph.
type Edge struct {
	From types.TypeID
	To   types.TypeID
	Kind EdgeKind
}

func (e Edge) String() string {
	return fmt.Sprintf("type#%d -%s-> type#%d", e.From, e.Kind, e.To)
}
