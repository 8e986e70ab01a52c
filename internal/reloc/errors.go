package reloc

import (
	"fmt"

	"coregraph/internal/types"
)

// FieldNotFoundError reports that a named step of an access path has no
// counterpart in the target composite. It is the recoverable outcome of
// matching one candidate; callers trying several candidates skip on it.
type FieldNotFoundError struct {
	Type   types.TypeID // target composite searched
	Name   string
	Detail string // optional, e.g. a kind mismatch on a same-named member
}

func (e *FieldNotFoundError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("field %q not found in target type#%d: %s", e.Name, e.Type, e.Detail)
	}
	return fmt.Sprintf("field %q not found in target type#%d", e.Name, e.Type)
}

// AmbiguousFieldError reports that a named step matches through more than
// one anonymous member of the same composite.
type AmbiguousFieldError struct {
	Type types.TypeID // target composite searched
	Name string
}

func (e *AmbiguousFieldError) Error() string {
	return fmt.Sprintf("field %q is ambiguous in target type#%d: found in more than one anonymous member", e.Name, e.Type)
}

// BadAccessError reports a malformed access spec or a spec that does not fit
// the shape of the type it is applied to.
type BadAccessError struct {
	Spec   string
	Pos    int
	Type   types.TypeID
	Detail string
}

func (e *BadAccessError) Error() string {
	return fmt.Sprintf("unsupported accessor %q at #%d: %s", e.Spec, e.Pos, e.Detail)
}

// NoCandidateError reports that no target type matched a relocation record.
type NoCandidateError struct {
	Name string
	Spec string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no target candidate for %q (spec %s) matched", e.Name, e.Spec)
}

// AmbiguousOffsetError reports that two target candidates matched the same
// record with different offsets, so no single relocation is correct.
type AmbiguousOffsetError struct {
	Name      string
	Spec      string
	First     types.TypeID
	FirstOff  int
	Second    types.TypeID
	SecondOff int
}

func (e *AmbiguousOffsetError) Error() string {
	return fmt.Sprintf(
		"ambiguous offset for %q (spec %s): candidate type#%d gives %d, type#%d gives %d",
		e.Name, e.Spec, e.First, e.FirstOff, e.Second, e.SecondOff)
}
