package diag

import (
	"errors"
	"strings"
	"testing"
)

func TestNewAggregateErrorCopiesFirstEntry(t *testing.T) {
	first := &CompilerError{
		Kind:     KindStyleTransform,
		Message:  "Unexpected }",
		Location: ErrorLocation{File: "/src/Card.tes", Line: 12, Column: 4},
		Hint:     "check the closing brace",
	}
	second := errors.New("plain failure")

	agg := NewAggregateError([]error{first, second})

	if agg.Message != first.Message || agg.Location != first.Location || agg.Hint != first.Hint {
		t.Fatalf("aggregate display fields not copied from first entry: %+v", agg)
	}
	if len(agg.Errors) != 2 || agg.Errors[0] != first || agg.Errors[1] != second {
		t.Fatalf("aggregate must keep every entry in order: %+v", agg.Errors)
	}
	if !errors.Is(agg, second) {
		t.Fatalf("errors.Is should see wrapped entries")
	}
	if !strings.Contains(agg.Error(), "and 1 more") {
		t.Fatalf("unexpected message %q", agg.Error())
	}
}

func TestNewAggregateErrorPlainFirst(t *testing.T) {
	agg := NewAggregateError([]error{errors.New("a"), errors.New("b")})
	if agg.Message != "a" {
		t.Fatalf("expected message from first error, got %q", agg.Message)
	}
}

func TestKindOf(t *testing.T) {
	diagErr := NewDiagnosticError(Diagnostic{Severity: SevError, Text: "bad", Location: Location{File: "a.tes", Line: 3, Column: 1}})
	if KindOf(diagErr) != KindCompilerDiagnostic {
		t.Fatalf("expected diagnostic kind")
	}
	agg := NewAggregateError([]error{diagErr, diagErr})
	if KindOf(agg) != KindStyleTransform {
		t.Fatalf("aggregates report style kind")
	}
	if KindOf(errors.New("x")) != 0 {
		t.Fatalf("plain errors have no kind")
	}
}

func TestCompilerErrorString(t *testing.T) {
	err := &CompilerError{
		Kind:     KindCompilerDiagnostic,
		Message:  "bad syntax",
		Location: ErrorLocation{File: "/src/Page.tes", Line: 3, Column: 1},
	}
	if got, want := err.Error(), "/src/Page.tes:3:1: CompilerError: bad syntax"; got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}
