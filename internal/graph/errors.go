package graph

import (
	"errors"
	"fmt"
)

// UnresolvedTypeError reports a tag that is embedded by value but never
// defined anywhere in the declaration set. Weak (pointer) references to
// undefined tags are legal and do not produce this error.
type UnresolvedTypeError struct {
	Tag      string // referenced tag name
	Referrer string // name of the type holding the reference, "" if anonymous
}

func (e *UnresolvedTypeError) Error() string {
	if e.Referrer == "" {
		return fmt.Sprintf("type %q is embedded by value but never defined", e.Tag)
	}
	return fmt.Sprintf("type %q is embedded by value in %q but never defined", e.Tag, e.Referrer)
}

// ErrAmbiguousMember is returned by FindMemberPath when a name resolves
// through more than one sibling anonymous member.
var ErrAmbiguousMember = errors.New("ambiguous member name across sibling anonymous members")

// ErrMemberNotFound is returned by FindMemberPath when a name is absent from
// the flattened namespace of a composite.
var ErrMemberNotFound = errors.New("member not found")
