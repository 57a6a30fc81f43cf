// Package transform is the boundary to the external template-to-code
// transformer. The transformer is opaque: it receives a component source with
// options and two callbacks, and returns generated code with diagnostics.
package transform

import (
	"context"

	"tessera/internal/diag"
)

// SourceMapMode selects how the transformer emits source maps.
type SourceMapMode string

const (
	SourceMapNone     SourceMapMode = ""
	SourceMapInline   SourceMapMode = "inline"
	SourceMapExternal SourceMapMode = "external"
	SourceMapBoth     SourceMapMode = "both"
)

// StyleResult answers one PreprocessStyle call. Index is the position the
// orchestrator assigned to the stylesheet; transformers may echo it back in
// Result.StyleIndex.
type StyleResult struct {
	Index int
	Code  string
	Map   string
	Error string
}

// StyleHook preprocesses one embedded stylesheet.
type StyleHook func(ctx context.Context, content string, attrs map[string]string) StyleResult

// ResolveHook resolves an import specifier of the component being compiled.
type ResolveHook func(ctx context.Context, specifier string) (string, error)

// Options configures one Transform call.
type Options struct {
	Filename                string        `msgpack:"filename"`
	NormalizedFilename      string        `msgpack:"normalized_filename"`
	Compact                 bool          `msgpack:"compact"`
	ScopedStyleStrategy     string        `msgpack:"scoped_style_strategy"`
	InternalURL             string        `msgpack:"internal_url"`
	SourceMap               SourceMapMode `msgpack:"sourcemap"`
	// SiteJSON is the JSON encoding of the configured site, empty when unset.
	SiteJSON                string        `msgpack:"site_json,omitempty"`
	ResultScopedSlot        bool          `msgpack:"result_scoped_slot"`
	TransitionsAnimationURL string        `msgpack:"transitions_animation_url"`
	AnnotateSourceFile      bool          `msgpack:"annotate_source_file"`
	RenderScript            bool          `msgpack:"render_script"`

	PreprocessStyle StyleHook   `msgpack:"-"`
	ResolvePath     ResolveHook `msgpack:"-"`
}

// Script is a script extracted from the component.
type Script struct {
	Type string `json:"type" msgpack:"type"`
	Code string `json:"code,omitempty" msgpack:"code"`
	Src  string `json:"src,omitempty" msgpack:"src"`
	Map  string `json:"map,omitempty" msgpack:"map"`
}

// Component describes an imported component that needs client hydration or
// server rendering.
type Component struct {
	ExportName   string `json:"exportName" msgpack:"export_name"`
	LocalName    string `json:"localName" msgpack:"local_name"`
	Specifier    string `json:"specifier" msgpack:"specifier"`
	ResolvedPath string `json:"resolvedPath" msgpack:"resolved_path"`
}

// Result is what the transformer returns.
type Result struct {
	Code                 string            `msgpack:"code"`
	Map                  string            `msgpack:"map"`
	Scope                string            `msgpack:"scope"`
	CSS                  []string          `msgpack:"css"`
	// StyleIndex, when it has one entry per CSS item, tags each item with the
	// StyleResult.Index of the stylesheet that produced it (-1 for none).
	StyleIndex           []int             `msgpack:"style_index,omitempty"`
	Scripts              []Script          `msgpack:"scripts"`
	HydratedComponents   []Component       `msgpack:"hydrated_components"`
	ClientOnlyComponents []Component       `msgpack:"client_only_components"`
	ServerComponents     []Component       `msgpack:"server_components"`
	ContainsHead         bool              `msgpack:"contains_head"`
	Propagation          bool              `msgpack:"propagation"`
	StyleError           []string          `msgpack:"style_error"`
	Diagnostics          []diag.Diagnostic `msgpack:"diagnostics"`
}

// Transformer compiles one component source.
type Transformer interface {
	Transform(ctx context.Context, source string, opts *Options) (*Result, error)
}

// Func adapts a function to Transformer.
type Func func(ctx context.Context, source string, opts *Options) (*Result, error)

func (f Func) Transform(ctx context.Context, source string, opts *Options) (*Result, error) {
	return f(ctx, source, opts)
}
