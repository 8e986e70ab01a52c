package diag

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics (e.g. cycle-break decisions).
	SevInfo Severity = iota
	// SevWarning is for recoverable findings.
	SevWarning
	// SevError is for findings that make the unit (or one type) unusable.
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}
