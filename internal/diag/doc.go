// Package diag defines the diagnostic and failure model shared by the compile
// orchestrator, the batch driver and the renderers.
//
// # Diagnostics
//
// Diagnostic is the record a transformer reports for one issue in a component:
//
//   - Severity – Error, Warning, Information or Hint. The numeric values follow
//     the transformer's wire convention; Fatal names the level that aborts a
//     compile.
//   - Code – numeric identifier assigned by the transformer (0 when unknown).
//   - Text – human oriented message.
//   - Location – file, 1-based line and column, optional length.
//   - Hint – optional suggestion shown under the message.
//
// Bag accumulates diagnostics across files for reporting (sorting,
// deduplication, severity filtering).
//
// # Failures
//
// A compile either succeeds or fails with exactly one failure value:
//
//   - *CompilerError with Kind KindUnknownCompiler – the transformer itself
//     broke outside its diagnostics protocol.
//   - *CompilerError with Kind KindCompilerDiagnostic – the transformer reported
//     a fatal diagnostic.
//   - *CompilerError with Kind KindStyleTransform – one embedded stylesheet
//     failed to preprocess.
//   - *AggregateError – several stylesheets failed; Errors keeps all of them in
//     call order.
//
// Package diag performs no IO and no formatting; rendering lives in
// internal/diagfmt.
package diag
