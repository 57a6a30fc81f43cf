package diag

import "fmt"

// Location points into a component file. Line and Column are 1-based; zero
// means unknown.
type Location struct {
	File   string `json:"file" msgpack:"file"`
	Line   int    `json:"line,omitempty" msgpack:"line"`
	Column int    `json:"column,omitempty" msgpack:"column"`
	Length int    `json:"length,omitempty" msgpack:"length"`
}

func (l Location) String() string {
	switch {
	case l.Line > 0 && l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	case l.Line > 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// Diagnostic is one issue reported by the transformer.
type Diagnostic struct {
	Code     int      `json:"code,omitempty" msgpack:"code"`
	Severity Severity `json:"severity" msgpack:"severity"`
	Text     string   `json:"text" msgpack:"text"`
	Location Location `json:"location" msgpack:"location"`
	Hint     string   `json:"hint,omitempty" msgpack:"hint"`
}

// IsFatal reports whether the diagnostic aborts compilation.
func (d Diagnostic) IsFatal() bool {
	return d.Severity == Fatal
}

// FirstFatal returns the first fatal diagnostic in list order.
func FirstFatal(items []Diagnostic) (Diagnostic, bool) {
	for _, d := range items {
		if d.IsFatal() {
			return d, true
		}
	}
	return Diagnostic{}, false
}
