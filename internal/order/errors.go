package order

import (
	"strings"

	"coregraph/internal/types"
)

// IllegalCycleError reports a dependency cycle in which every edge is a value
// embedding. No emission order can satisfy such a graph: each type would need
// the full definition of the next before its own.
type IllegalCycleError struct {
	// Cycle lists the participating declarations in discovery order; the
	// first entry is repeated conceptually after the last.
	Cycle []types.TypeID

	names []string
}

func (e *IllegalCycleError) Error() string {
	var b strings.Builder
	b.WriteString("illegal type cycle: ")
	if len(e.names) == 0 {
		b.WriteString("value embedding with no pointer edge to break")
		return b.String()
	}
	b.WriteString(strings.Join(e.names, " -> "))
	b.WriteString(" (every edge is a value embedding; no pointer edge to break)")
	return b.String()
}
