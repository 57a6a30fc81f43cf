package compile

import (
	"errors"
	"testing"

	"tessera/internal/diag"
)

func TestReconcileFirstFatalWins(t *testing.T) {
	diags := []diag.Diagnostic{
		{Severity: diag.SevWarning, Text: "unused", Location: diag.Location{File: "a.tes", Line: 1, Column: 1}},
		{Severity: diag.SevError, Text: "first", Location: diag.Location{File: "a.tes", Line: 2, Column: 4}, Hint: "fix it"},
		{Severity: diag.SevError, Text: "second", Location: diag.Location{File: "a.tes", Line: 9, Column: 1}},
	}
	styleErrs := []error{errors.New("css one"), errors.New("css two")}

	err := reconcile(diags, styleErrs)
	var ce *diag.CompilerError
	if !errors.As(err, &ce) {
		t.Fatalf("want *diag.CompilerError, got %T", err)
	}
	if ce.Kind != diag.KindCompilerDiagnostic {
		t.Fatalf("kind: want %v, got %v", diag.KindCompilerDiagnostic, ce.Kind)
	}
	if ce.Message != "first" || ce.Location.Line != 2 || ce.Location.Column != 4 || ce.Hint != "fix it" {
		t.Fatalf("unexpected error fields: %+v", ce)
	}
	for _, se := range styleErrs {
		if errors.Is(err, se) {
			t.Fatalf("style error %v leaked into the diagnostic failure", se)
		}
	}
}

func TestReconcileStyleErrors(t *testing.T) {
	one := &diag.CompilerError{Kind: diag.KindStyleTransform, Message: "one", Location: diag.ErrorLocation{File: "a.tes", Line: 3}}
	two := &diag.CompilerError{Kind: diag.KindStyleTransform, Message: "two", Location: diag.ErrorLocation{File: "a.tes", Line: 7}}
	warn := []diag.Diagnostic{{Severity: diag.SevWarning, Text: "careful"}}

	if err := reconcile(warn, nil); err != nil {
		t.Fatalf("no style errors: want nil, got %v", err)
	}

	err := reconcile(warn, []error{one})
	if err != one {
		t.Fatalf("single style error: want it unchanged, got %v", err)
	}

	err = reconcile(warn, []error{one, two})
	var agg *diag.AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("want *diag.AggregateError, got %T", err)
	}
	if len(agg.Errors) != 2 || agg.Errors[0] != one || agg.Errors[1] != two {
		t.Fatalf("aggregate entries: got %v", agg.Errors)
	}
	if agg.Message != "one" || agg.Location.Line != 3 {
		t.Fatalf("aggregate display fields should come from the first entry: %+v", agg)
	}
}

func TestReconcileIgnoresNonFatal(t *testing.T) {
	diags := []diag.Diagnostic{
		{Severity: diag.SevWarning, Text: "w"},
		{Severity: diag.SevInfo, Text: "i"},
		{Severity: diag.SevHint, Text: "h"},
	}
	if err := reconcile(diags, nil); err != nil {
		t.Fatalf("want nil, got %v", err)
	}
}
