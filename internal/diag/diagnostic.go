package diag

import (
	"fmt"

	"coregraph/internal/types"
)

// Diagnostic is one reportable finding about a declaration set. Subject
// identifies the offending type; Member names the offending member where one
// exists.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Subject  types.TypeID
	Member   string
}

func (d Diagnostic) String() string {
	loc := ""
	if d.Subject != types.NoTypeID {
		loc = fmt.Sprintf(" [type#%d]", d.Subject)
		if d.Member != "" {
			loc = fmt.Sprintf(" [type#%d.%s]", d.Subject, d.Member)
		}
	}
	return fmt.Sprintf("%s %s:%s %s", d.Severity, d.Code, loc, d.Message)
}
