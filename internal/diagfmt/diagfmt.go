// Package diagfmt renders diagnostic bags for the CLI, in a
// human-readable form or as JSON for tooling.
package diagfmt

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"coregraph/internal/diag"
	"coregraph/internal/types"
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color bool
	Max   int // 0 = no limit
}

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan)
)

// Pretty prints one diagnostic per line:
// <SEV> <CODE> [subject]: <message>
// The subject is resolved to a declaration name where the interner knows it.
func Pretty(w io.Writer, bag *diag.Bag, in *types.Interner, opts PrettyOpts) {
	if bag == nil {
		return
	}
	for i, d := range bag.Items() {
		if opts.Max > 0 && i >= opts.Max {
			fmt.Fprintf(w, "... %d more\n", bag.Len()-opts.Max)
			return
		}
		sev := d.Severity.String()
		if opts.Color {
			switch d.Severity {
			case diag.SevError:
				sev = errColor.Sprint(sev)
			case diag.SevWarning:
				sev = warnColor.Sprint(sev)
			default:
				sev = infoColor.Sprint(sev)
			}
		}
		fmt.Fprintf(w, "%s %s%s: %s\n", sev, d.Code, subject(in, d), d.Message)
	}
}

func subject(in *types.Interner, d diag.Diagnostic) string {
	if d.Subject == types.NoTypeID {
		return ""
	}
	name := ""
	if in != nil {
		name = in.NameOf(d.Subject)
	}
	if name == "" {
		name = fmt.Sprintf("type#%d", d.Subject)
	}
	if d.Member != "" {
		return fmt.Sprintf(" [%s.%s]", name, d.Member)
	}
	return fmt.Sprintf(" [%s]", name)
}

// DiagnosticJSON is the serialized form of one diagnostic.
type DiagnosticJSON struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Subject  uint32 `json:"subject,omitempty"`
	Name     string `json:"name,omitempty"`
	Member   string `json:"member,omitempty"`
}

// JSON writes the bag as a JSON array.
func JSON(w io.Writer, bag *diag.Bag, in *types.Interner) error {
	out := make([]DiagnosticJSON, 0, bag.Len())
	for _, d := range bag.Items() {
		dj := DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code.String(),
			Message:  d.Message,
			Subject:  uint32(d.Subject),
			Member:   d.Member,
		}
		if in != nil && d.Subject != types.NoTypeID {
			dj.Name = in.NameOf(d.Subject)
		}
		out = append(out, dj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
