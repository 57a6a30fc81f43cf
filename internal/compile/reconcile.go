package compile

import "tessera/internal/diag"

// reconcile decides the outcome of a transform that returned normally.
// The first fatal diagnostic wins outright; style errors are only reported
// when there is none, one as is and several as an aggregate.
func reconcile(diagnostics []diag.Diagnostic, styleErrs []error) error {
	if d, ok := diag.FirstFatal(diagnostics); ok {
		return diag.NewDiagnosticError(d)
	}
	switch len(styleErrs) {
	case 0:
		return nil
	case 1:
		return styleErrs[0]
	default:
		return diag.NewAggregateError(styleErrs)
	}
}
