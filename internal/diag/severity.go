package diag

import (
	"fmt"
	"strings"
)

// Severity defines the importance of a diagnostic.
// Lower values are more severe; the numbering matches the transformer's wire format.
type Severity uint8

const (
	// SevError is for diagnostics that abort compilation.
	SevError Severity = iota + 1
	// SevWarning is for warning diagnostics.
	SevWarning
	SevInfo
	SevHint
)

// Fatal is the severity at which a reported diagnostic fails the compile.
const Fatal = SevError

func (s Severity) String() string {
	switch s {
	case SevError:
		return "ERROR"
	case SevWarning:
		return "WARNING"
	case SevInfo:
		return "INFO"
	case SevHint:
		return "HINT"
	}
	return "UNKNOWN"
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s != 0 && s <= other
}

// ParseSeverity converts a CLI spelling into a Severity.
func ParseSeverity(v string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "error":
		return SevError, nil
	case "warning", "warn":
		return SevWarning, nil
	case "info", "information":
		return SevInfo, nil
	case "hint":
		return SevHint, nil
	}
	return 0, fmt.Errorf("invalid severity %q (expected error|warning|info|hint)", v)
}
