package diag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a compile failure.
type ErrorKind uint8

const (
	// KindUnknownCompiler marks a transformer that failed outside its diagnostics protocol.
	KindUnknownCompiler ErrorKind = iota + 1
	// KindCompilerDiagnostic marks a fatal diagnostic reported by the transformer.
	KindCompilerDiagnostic
	// KindStyleTransform marks an embedded stylesheet that failed to preprocess.
	KindStyleTransform
)

// Name returns the user-facing error name for the kind.
func (k ErrorKind) Name() string {
	switch k {
	case KindUnknownCompiler:
		return "UnknownCompilerError"
	case KindCompilerDiagnostic:
		return "CompilerError"
	case KindStyleTransform:
		return "CSSError"
	}
	return "Error"
}

// Title returns a short headline for the kind.
func (k ErrorKind) Title() string {
	switch k {
	case KindUnknownCompiler:
		return "Unknown compiler error."
	case KindCompilerDiagnostic:
		return "Compiler error."
	case KindStyleTransform:
		return "CSS error."
	}
	return "Error."
}

// ErrorLocation is where a failure points. Line and Column are optional.
type ErrorLocation struct {
	File   string `json:"file" msgpack:"file"`
	Line   int    `json:"line,omitempty" msgpack:"line"`
	Column int    `json:"column,omitempty" msgpack:"column"`
}

func (l ErrorLocation) String() string {
	return Location{File: l.File, Line: l.Line, Column: l.Column}.String()
}

// CompilerError is the failure value produced by a compile.
type CompilerError struct {
	Kind     ErrorKind
	Message  string
	Location ErrorLocation
	Hint     string
	Stack    string
	// Frame holds the offending source excerpt when the producer has one.
	Frame string
	Cause error
}

// Name returns the kind's error name.
func (e *CompilerError) Name() string {
	return e.Kind.Name()
}

func (e *CompilerError) Error() string {
	var b strings.Builder
	if loc := e.Location.String(); loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Name())
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *CompilerError) Unwrap() error {
	return e.Cause
}

// NewDiagnosticError builds the failure for a fatal diagnostic. Only the
// diagnostic's own fields are carried.
func NewDiagnosticError(d Diagnostic) *CompilerError {
	return &CompilerError{
		Kind:    KindCompilerDiagnostic,
		Message: d.Text,
		Location: ErrorLocation{
			File:   d.Location.File,
			Line:   d.Location.Line,
			Column: d.Location.Column,
		},
		Hint: d.Hint,
	}
}

// AggregateError bundles several failures. Its display fields are those of
// the first entry.
type AggregateError struct {
	Message  string
	Location ErrorLocation
	Hint     string
	Errors   []error
}

// NewAggregateError wraps errs, copying message, location and hint from errs[0].
func NewAggregateError(errs []error) *AggregateError {
	agg := &AggregateError{Errors: append([]error(nil), errs...)}
	if len(errs) == 0 {
		return agg
	}
	var first *CompilerError
	if errors.As(errs[0], &first) {
		agg.Message = first.Message
		agg.Location = first.Location
		agg.Hint = first.Hint
	} else {
		agg.Message = errs[0].Error()
	}
	return agg
}

// Name returns "AggregateError".
func (e *AggregateError) Name() string {
	return "AggregateError"
}

func (e *AggregateError) Error() string {
	msg := e.Message
	if loc := e.Location.String(); loc != "" {
		msg = loc + ": " + msg
	}
	if n := len(e.Errors); n > 1 {
		return fmt.Sprintf("%s: %s (and %d more)", e.Name(), msg, n-1)
	}
	return e.Name() + ": " + msg
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// KindOf reports the kind of a failure value. Aggregates report
// KindStyleTransform; anything else reports 0.
func KindOf(err error) ErrorKind {
	var agg *AggregateError
	if errors.As(err, &agg) {
		return KindStyleTransform
	}
	var ce *CompilerError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
