package diagfmt

import (
	"encoding/json"
	"errors"
	"io"

	"tessera/internal/diag"
)

// LocationJSON is a file position in JSON output.
type LocationJSON struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Length int    `json:"length,omitempty"`
}

// DiagnosticJSON is one diagnostic in JSON output.
type DiagnosticJSON struct {
	Severity string       `json:"severity"`
	Code     int          `json:"code,omitempty"`
	Message  string       `json:"message"`
	Location LocationJSON `json:"location"`
	Hint     string       `json:"hint,omitempty"`
}

// DiagnosticsOutput is the root of JSONDiagnostics output.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
}

// ErrorJSON is a failure value in JSON output. Aggregates list their
// wrapped failures in Errors.
type ErrorJSON struct {
	Name     string        `json:"name"`
	Message  string        `json:"message"`
	Location *LocationJSON `json:"location,omitempty"`
	Hint     string        `json:"hint,omitempty"`
	Frame    string        `json:"frame,omitempty"`
	Stack    string        `json:"stack,omitempty"`
	Errors   []ErrorJSON   `json:"errors,omitempty"`
}

func makeLocation(file string, line, column, length int, opts JSONOpts) *LocationJSON {
	if file == "" {
		return nil
	}
	return &LocationJSON{
		File:   formatPath(file, opts.PathMode, opts.BaseDir),
		Line:   line,
		Column: column,
		Length: length,
	}
}

// BuildErrorOutput converts a failure value without serializing it.
func BuildErrorOutput(err error, opts JSONOpts) ErrorJSON {
	var agg *diag.AggregateError
	if errors.As(err, &agg) {
		out := ErrorJSON{
			Name:     agg.Name(),
			Message:  agg.Message,
			Location: makeLocation(agg.Location.File, agg.Location.Line, agg.Location.Column, 0, opts),
			Hint:     agg.Hint,
			Errors:   make([]ErrorJSON, 0, len(agg.Errors)),
		}
		for _, child := range agg.Errors {
			out.Errors = append(out.Errors, BuildErrorOutput(child, opts))
		}
		return out
	}
	var ce *diag.CompilerError
	if errors.As(err, &ce) {
		out := ErrorJSON{
			Name:     ce.Name(),
			Message:  ce.Message,
			Location: makeLocation(ce.Location.File, ce.Location.Line, ce.Location.Column, 0, opts),
			Hint:     ce.Hint,
			Frame:    ce.Frame,
		}
		if opts.IncludeStack {
			out.Stack = ce.Stack
		}
		return out
	}
	return ErrorJSON{Name: "Error", Message: err.Error()}
}

// JSONError writes a failure value as an indented JSON object.
func JSONError(w io.Writer, err error, opts JSONOpts) error {
	return writeJSON(w, BuildErrorOutput(err, opts))
}

// BuildDiagnosticsOutput converts diagnostics without serializing them.
func BuildDiagnosticsOutput(items []diag.Diagnostic, opts JSONOpts) DiagnosticsOutput {
	n := len(items)
	if opts.Max > 0 && opts.Max < n {
		n = opts.Max
	}
	out := make([]DiagnosticJSON, 0, n)
	for _, d := range items[:n] {
		dj := DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code,
			Message:  d.Text,
			Hint:     d.Hint,
		}
		if loc := makeLocation(d.Location.File, d.Location.Line, d.Location.Column, d.Location.Length, opts); loc != nil {
			dj.Location = *loc
		}
		out = append(out, dj)
	}
	return DiagnosticsOutput{Diagnostics: out, Count: len(out)}
}

// JSONDiagnostics writes diagnostics as {"diagnostics": [...], "count": n}.
func JSONDiagnostics(w io.Writer, items []diag.Diagnostic, opts JSONOpts) error {
	return writeJSON(w, BuildDiagnosticsOutput(items, opts))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
