// Package trace records what the compiler driver does and how long it takes.
//
// Events are spans (begin/end pairs) and points, tagged with a scope:
//
//   - ScopeDriver: a CLI command or a server request
//   - ScopeBatch: a batch stage (discover, compile, emit)
//   - ScopeFile: one component compile
//   - ScopeHook: transformer callbacks (stylesheets, resolution)
//
// The level decides which scopes are written: phase keeps driver and batch,
// detail adds files, debug adds hooks.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeFile, "compile", 0)
//	defer span.End("")
//
// File outputs are rotated, so a long-running server can keep tracing on.
package trace
