// Package compile drives the transformer for one component and reconciles its
// diagnostics with the stylesheet preprocessing failures into a single result
// or a single failure value.
package compile

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"tessera/internal/diag"
	"tessera/internal/resolve"
	"tessera/internal/source"
	"tessera/internal/stylesheet"
	"tessera/internal/transform"
)

const unknownMessage = "Unknown compiler error"

// CSSResult is one compiled stylesheet with the metadata of the
// preprocessing call that produced it, if any.
type CSSResult struct {
	Code     string               `json:"code" msgpack:"code"`
	Metadata *stylesheet.Metadata `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Result is a successful compile.
type Result struct {
	Code                 string                `json:"code" msgpack:"code"`
	Map                  string                `json:"map" msgpack:"map"`
	Scope                string                `json:"scope" msgpack:"scope"`
	CSS                  []CSSResult           `json:"css" msgpack:"css"`
	Scripts              []transform.Script    `json:"scripts" msgpack:"scripts"`
	HydratedComponents   []transform.Component `json:"hydratedComponents" msgpack:"hydrated_components"`
	ClientOnlyComponents []transform.Component `json:"clientOnlyComponents" msgpack:"client_only_components"`
	ServerComponents     []transform.Component `json:"serverComponents" msgpack:"server_components"`
	ContainsHead         bool                  `json:"containsHead" msgpack:"contains_head"`
	Propagation          bool                  `json:"propagation" msgpack:"propagation"`
	StyleError           []string              `json:"styleError" msgpack:"style_error"`
	// Diagnostics holds the non-fatal diagnostics of the transformer.
	Diagnostics []diag.Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
}

// Compiler compiles components with injected collaborators. It holds no
// per-call state and is safe for concurrent use if they are.
type Compiler struct {
	transformer transform.Transformer
	styles      stylesheet.Preprocessor
	resolver    resolve.Resolver
}

// New returns a Compiler. A nil resolver leaves specifiers untouched.
func New(t transform.Transformer, styles stylesheet.Preprocessor, r resolve.Resolver) *Compiler {
	return &Compiler{transformer: t, styles: styles, resolver: r}
}

// Compile compiles req.Source. Failures are *diag.CompilerError or
// *diag.AggregateError values.
func (c *Compiler) Compile(ctx context.Context, req *Request) (*Result, error) {
	normalized := source.NormalizeFilename(req.Filename, req.ProjectRoot)
	styles := stylesheet.NewCollector(req.Filename, req.Source, c.styles)

	out, err := c.transform(ctx, req, c.transformOptions(req, normalized, styles))
	if err != nil {
		return nil, err
	}
	if err := reconcile(out.Diagnostics, styles.Errors()); err != nil {
		return nil, err
	}
	return assemble(out, styles), nil
}

func (c *Compiler) transformOptions(req *Request, normalized string, styles *stylesheet.Collector) *transform.Options {
	strategy := req.Options.ScopedStyleStrategy
	if strategy == "" {
		strategy = StrategyWhere
	}
	return &transform.Options{
		Filename:                req.Filename,
		NormalizedFilename:      normalized,
		Compact:                 req.Options.CompactOutput,
		ScopedStyleStrategy:     string(strategy),
		InternalURL:             InternalURL,
		SourceMap:               transform.SourceMapBoth,
		SiteJSON:                siteJSON(req.Options.Site),
		ResultScopedSlot:        true,
		TransitionsAnimationURL: TransitionsAnimationURL,
		AnnotateSourceFile:      req.Options.AnnotateSource,
		RenderScript:            req.Options.RenderScriptInline,
		PreprocessStyle: func(ctx context.Context, content string, attrs map[string]string) transform.StyleResult {
			var r stylesheet.HookResult
			if order, ok := transform.StyleOrder(ctx); ok {
				r = styles.HookAt(ctx, order, content, attrs)
			} else {
				r = styles.Hook(ctx, content, attrs)
			}
			return transform.StyleResult{Index: r.Index, Code: r.Code, Map: r.Map, Error: r.Error}
		},
		ResolvePath: func(ctx context.Context, specifier string) (string, error) {
			if c.resolver == nil {
				return specifier, nil
			}
			return c.resolver.Resolve(ctx, specifier, req.Filename)
		},
	}
}

// transform calls the transformer. Any error it returns, and any panic,
// becomes an UnknownCompilerError located at the input file.
func (c *Compiler) transform(ctx context.Context, req *Request, opts *transform.Options) (out *transform.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			err = unknownCompilerError(req.Filename, cause, string(debug.Stack()))
		}
	}()

	if c.transformer == nil {
		return nil, unknownCompilerError(req.Filename, errors.New("no transformer configured"), "")
	}
	out, err = c.transformer.Transform(ctx, req.Source, opts)
	if err != nil {
		var stack string
		var st interface{ Stack() string }
		if errors.As(err, &st) {
			stack = st.Stack()
		}
		return nil, unknownCompilerError(req.Filename, err, stack)
	}
	if out == nil {
		return nil, unknownCompilerError(req.Filename, nil, "")
	}
	return out, nil
}

func unknownCompilerError(filename string, cause error, stack string) *diag.CompilerError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if msg == "" {
		msg = unknownMessage
	}
	return &diag.CompilerError{
		Kind:     diag.KindUnknownCompiler,
		Message:  msg,
		Location: diag.ErrorLocation{File: filename},
		Stack:    stack,
		Cause:    cause,
	}
}

// assemble copies the transformer output and pairs each css entry with the
// metadata of the stylesheet that produced it. Explicit StyleIndex tags are
// used when there is one per entry; otherwise entries pair by position.
func assemble(out *transform.Result, styles *stylesheet.Collector) *Result {
	tagged := len(out.StyleIndex) == len(out.CSS)
	css := make([]CSSResult, len(out.CSS))
	for i, code := range out.CSS {
		css[i].Code = code
		idx := i
		if tagged {
			idx = out.StyleIndex[i]
		}
		if idx < 0 {
			continue
		}
		if m, ok := styles.Metadata(idx); ok {
			css[i].Metadata = &m
		}
	}

	return &Result{
		Code:                 out.Code,
		Map:                  out.Map,
		Scope:                out.Scope,
		CSS:                  css,
		Scripts:              out.Scripts,
		HydratedComponents:   out.HydratedComponents,
		ClientOnlyComponents: out.ClientOnlyComponents,
		ServerComponents:     out.ServerComponents,
		ContainsHead:         out.ContainsHead,
		Propagation:          out.Propagation,
		StyleError:           out.StyleError,
		Diagnostics:          out.Diagnostics,
	}
}
